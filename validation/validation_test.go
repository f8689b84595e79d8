package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/product-catalog/models"
)

func TestDecodeCreate(t *testing.T) {
	p, err := DecodeCreate(strings.NewReader(`{"name":"Lamp","description":"desk","price":12.5,"sku":"ignored"}`))
	require.NoError(t, err)
	assert.Equal(t, models.CreateProductParams{Name: "Lamp", Description: "desk", Price: 12.5}, p)
}

func TestDecodeCreate_DefaultsDescription(t *testing.T) {
	p, err := DecodeCreate(strings.NewReader(`{"name":"Lamp","price":3,"description":null}`))
	require.NoError(t, err)
	assert.Equal(t, "", p.Description)
	assert.Equal(t, 3.0, p.Price)
}

func TestDecodeCreate_Rejects(t *testing.T) {
	cases := map[string]struct {
		body  string
		field string
	}{
		"missing name":   {`{"price":1}`, "name"},
		"missing price":  {`{"name":"x"}`, "price"},
		"null price":     {`{"name":"x","price":null}`, "price"},
		"blank name":     {`{"name":"   ","price":1}`, "name"},
		"numeric name":   {`{"name":5,"price":1}`, "name"},
		"string price":   {`{"name":"x","price":"12"}`, "price"},
		"boolean price":  {`{"name":"x","price":true}`, "price"},
		"zero price":     {`{"name":"x","price":0}`, "price"},
		"negative price": {`{"name":"x","price":-2}`, "price"},
		"object desc":    {`{"name":"x","price":1,"description":{}}`, "description"},
		"malformed":      {`{"name":`, ""},
		"array body":     {`[1,2]`, ""},
		"null body":      {`null`, ""},
		"empty body":     {``, ""},
		"trailing text":  {`{"name":"Y","price":1} trailing`, ""},
		"two objects":    {`{"name":"Y","price":1}{"name":"Z","price":2}`, ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeCreate(strings.NewReader(tc.body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrInvalidInput))

			var verr *Error
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestDecodeCreate_TrailingWhitespace(t *testing.T) {
	p, err := DecodeCreate(strings.NewReader("{\"name\":\"Y\",\"price\":1}\n  "))
	require.NoError(t, err)
	assert.Equal(t, "Y", p.Name)
}

func TestDecodeUpdate_RejectsTrailingData(t *testing.T) {
	_, err := DecodeUpdate(strings.NewReader(`{"price":2} 3`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInvalidInput))
}

func TestDecodeUpdate(t *testing.T) {
	p, err := DecodeUpdate(strings.NewReader(`{"price":9.5}`))
	require.NoError(t, err)
	require.NotNil(t, p.Price)
	assert.Equal(t, 9.5, *p.Price)
	assert.Nil(t, p.Name)
	assert.Nil(t, p.Description)

	p, err = DecodeUpdate(strings.NewReader(`{"description":""}`))
	require.NoError(t, err)
	require.NotNil(t, p.Description)
	assert.Equal(t, "", *p.Description)
}

func TestDecodeUpdate_Rejects(t *testing.T) {
	cases := map[string]string{
		"empty object":  `{}`,
		"only unknown":  `{"color":"red"}`,
		"only nulls":    `{"name":null,"price":null}`,
		"blank name":    `{"name":""}`,
		"string price":  `{"price":"1"}`,
		"zero price":    `{"price":0}`,
		"bool name":     `{"name":false}`,
		"not an object": `"name"`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeUpdate(strings.NewReader(body))
			assert.ErrorIs(t, err, models.ErrInvalidInput)
		})
	}
}
