package comparator

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/syntrixbase/livequery/pkg/model"
	"golang.org/x/text/language"
)

func TestBuild_SingleStringField(t *testing.T) {
	cmp := Build([]model.Order{{Field: "id", Direction: model.Asc, Type: model.TypeString}})

	a := model.Document{"id": "abc001"}
	b := model.Document{"id": "abc002"}

	assert.Equal(t, -1, cmp(a, b))
	assert.Equal(t, 1, cmp(b, a))
	assert.Equal(t, 0, cmp(a, model.Document{"id": "abc001"}))
}

func TestBuild_Descending(t *testing.T) {
	cmp := Build([]model.Order{{Field: "id", Direction: model.Desc, Type: model.TypeString}})

	assert.Equal(t, 1, cmp(model.Document{"id": "a"}, model.Document{"id": "b"}))
	assert.Equal(t, -1, cmp(model.Document{"id": "b"}, model.Document{"id": "a"}))
}

func TestBuild_NumberField(t *testing.T) {
	cmp := Build([]model.Order{{Field: "n", Direction: model.Asc, Type: model.TypeNumber}})

	assert.Equal(t, -1, cmp(model.Document{"n": 2}, model.Document{"n": 10}))
	assert.Equal(t, 1, cmp(model.Document{"n": int64(10)}, model.Document{"n": 2.5}))
	assert.Equal(t, 0, cmp(model.Document{"n": int32(7)}, model.Document{"n": float64(7)}))
}

func TestBuild_TieCascade(t *testing.T) {
	cmp := Build([]model.Order{
		{Field: "zahl1", Direction: model.Asc, Type: model.TypeNumber},
		{Field: "id", Direction: model.Desc, Type: model.TypeString},
	})

	a := model.Document{"id": "abc001", "zahl1": 5}
	b := model.Document{"id": "abc002", "zahl1": 5}
	c := model.Document{"id": "abc003", "zahl1": 4}

	// equal zahl1, id descending decides
	assert.Equal(t, 1, cmp(a, b))
	assert.Equal(t, -1, cmp(b, a))
	// zahl1 decides first
	assert.Equal(t, -1, cmp(c, a))
}

func TestBuild_AllEqual(t *testing.T) {
	cmp := Build([]model.Order{
		{Field: "x", Direction: model.Asc, Type: model.TypeNumber},
		{Field: "y", Direction: model.Asc, Type: model.TypeString},
	})
	assert.Equal(t, 0, cmp(model.Document{"x": 1, "y": "a", "id": "1"}, model.Document{"x": 1, "y": "a", "id": "2"}))
}

func TestBuild_EmptyOrder(t *testing.T) {
	cmp := Build(nil)
	assert.Equal(t, 0, cmp(model.Document{"id": "a"}, model.Document{"id": "b"}))
}

func TestBuild_MissingValuesSortFirst(t *testing.T) {
	cmp := Build([]model.Order{{Field: "name", Direction: model.Asc, Type: model.TypeString}})

	withName := model.Document{"name": "a"}
	nilName := model.Document{"name": nil}
	noName := model.Document{}
	wrongType := model.Document{"name": 5}

	assert.Equal(t, -1, cmp(noName, withName))
	assert.Equal(t, -1, cmp(nilName, withName))
	assert.Equal(t, 1, cmp(withName, wrongType))
	assert.Equal(t, 0, cmp(noName, nilName))
	assert.Equal(t, 0, cmp(nil, noName))

	num := Build([]model.Order{{Field: "n", Direction: model.Desc, Type: model.TypeNumber}})
	// missing sorts first ascending, so last descending
	assert.Equal(t, 1, num(model.Document{}, model.Document{"n": 1}))
	assert.Equal(t, -1, num(model.Document{"n": 1}, model.Document{"n": "one"}))
}

func TestBuild_NestedField(t *testing.T) {
	cmp := Build([]model.Order{{Field: "address.city", Direction: model.Asc, Type: model.TypeString}})
	a := model.Document{"address": map[string]interface{}{"city": "Berlin"}}
	b := model.Document{"address": map[string]interface{}{"city": "Hamburg"}}
	assert.Equal(t, -1, cmp(a, b))
}

func TestBuild_LocaleAwareStrings(t *testing.T) {
	cmp := Build([]model.Order{{Field: "name", Direction: model.Asc, Type: model.TypeString}}, WithLocale(language.German))

	docs := []model.Document{
		{"name": "Zebra"},
		{"name": "Äpfel"},
		{"name": "apfel"},
		{"name": "Birne"},
	}
	sort.SliceStable(docs, func(i, j int) bool { return cmp(docs[i], docs[j]) < 0 })

	var names []string
	for _, d := range docs {
		names = append(names, d["name"].(string))
	}
	// Byte order would put "Zebra" before "apfel" and "Äpfel" last.
	assert.Equal(t, []string{"apfel", "Äpfel", "Birne", "Zebra"}, names)
}

func TestBuild_ConcurrentUse(t *testing.T) {
	cmp := Build([]model.Order{{Field: "name", Direction: model.Asc, Type: model.TypeString}})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				assert.Equal(t, -1, cmp(model.Document{"name": "alpha"}, model.Document{"name": "beta"}))
			}
		}()
	}
	wg.Wait()
}
