package godatautil

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"

	"fknsrs.biz/p/ytnotes/models"
)

func TestParseQuery(t *testing.T) {
	a := assert.New(t)

	q, err := ParseQuery(url.Values{
		"$filter":  []string{"substringof(PlaylistName,'mix')"},
		"$orderby": []string{"PlaylistName asc"},
		"$skip":    []string{"10"},
		"$top":     []string{"25"},
	})
	a.NoError(err)
	a.NotNil(q.Filter)
	a.NotNil(q.OrderBy)
	if a.NotNil(q.Skip) {
		a.Equal(10, int(*q.Skip))
	}
	if a.NotNil(q.Top) {
		a.Equal(25, int(*q.Top))
	}
}

func TestParseQueryEmpty(t *testing.T) {
	a := assert.New(t)

	q, err := ParseQuery(url.Values{})
	a.NoError(err)
	a.Nil(q.Filter)
	a.Nil(q.OrderBy)
	a.Nil(q.Skip)
	a.Nil(q.Top)
}

func TestParseQueryBadInput(t *testing.T) {
	a := assert.New(t)

	_, err := ParseQuery(url.Values{"$skip": []string{"lots"}})
	a.Error(err)

	_, err = ParseQuery(url.Values{"$top": []string{"-1x"}})
	a.Error(err)
}

func TestMakeCondition(t *testing.T) {
	a := assert.New(t)

	q, err := ParseQuery(url.Values{"$filter": []string{"substringof(PlaylistName,'mix')"}})
	a.NoError(err)

	expr, err := MakeCondition(q, models.PlaylistSearchTable)
	a.NoError(err)
	a.NotNil(expr)

	expr, err = MakeCondition(nil, models.PlaylistSearchTable)
	a.NoError(err)
	a.Nil(expr)
}

func TestMakeConditionUnknownField(t *testing.T) {
	a := assert.New(t)

	q, err := ParseQuery(url.Values{"$filter": []string{"substringof(NoSuchField,'mix')"}})
	a.NoError(err)

	_, err = MakeCondition(q, models.PlaylistSearchTable)
	a.Error(err)
}

func TestMakeOrders(t *testing.T) {
	a := assert.New(t)

	q, err := ParseQuery(url.Values{"$orderby": []string{"PlaylistName desc"}})
	a.NoError(err)

	orders, err := MakeOrders(q, models.PlaylistSearchTable)
	a.NoError(err)
	a.Len(orders, 1)

	// no $orderby falls back to the supplied defaults
	orders, err = MakeOrders(nil, models.PlaylistSearchTable)
	a.NoError(err)
	a.Len(orders, 0)
}

func TestMakeOffsetLimit(t *testing.T) {
	a := assert.New(t)

	a.NotNil(MakeOffsetLimit(nil, 0, 100))

	q, err := ParseQuery(url.Values{"$skip": []string{"5"}, "$top": []string{"10"}})
	a.NoError(err)
	a.NotNil(MakeOffsetLimit(q, 0, 100))
}
