package flags

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func pypsaResolver() *DottedResolver {
	return &DottedResolver{
		TimeSeriesSuffix: "_t",
		Units: map[Flag]Unit{
			"buses_t.marginal_price": EURPerMWh,
			"generators_t.p":         MW,
		},
		Topology:      map[string]TopologyType{"buses": TopologyNode, "lines": TopologyEdge},
		Visualization: map[string]VisualizationType{"buses": VisualizationPoint},
		Memberships:   map[string]string{"bus": "buses"},
	}
}

func TestSetKeepsInsertionOrder(t *testing.T) {
	s := NewSet("b", "a", "b", "c")
	assert.Equal(t, []Flag{"b", "a", "c"}, s.Slice())

	u := s.Union(NewSet("d", "a"))
	assert.Equal(t, []Flag{"b", "a", "c", "d"}, u.Slice())
	assert.Equal(t, []Flag{"a", "d"}, NewSet("a", "x", "d").Intersect(u).Slice())
}

func TestSetContaining(t *testing.T) {
	s := NewSet("Generator.p_nom_opt", "Bus.Model", "generator_t.p")

	assert.Equal(t, []Flag{"Generator.p_nom_opt", "generator_t.p"}, s.Containing("generator", false).Slice())
	assert.Equal(t, []Flag{"Generator.p_nom_opt"}, s.Containing("Generator", true).Slice())
}

func TestPathBuildsDottedFlag(t *testing.T) {
	p := P("Generator").Dot("p_nom_opt")
	base := P("Generator")
	_ = base.Dot("other")

	assert.Equal(t, "Generator.p_nom_opt", p.String())
	assert.Equal(t, "Generator", base.String())

	ix := NewIndex(pypsaResolver())
	f, err := ix.FlagFromPath(p)
	require.NoError(t, err)
	assert.Equal(t, Flag("Generator.p_nom_opt"), f)

	_, err = ix.FlagFromString("nodot")
	assert.ErrorIs(t, err, ErrUnresolved)
}

func TestExplicitEntryWinsOverResolver(t *testing.T) {
	ix := NewIndex(pypsaResolver(), WithEntries(Entry{
		Flag:            "buses_t.marginal_price",
		LinkedModelFlag: "BZ.Model",
		ItemType:        ItemTimeSeries,
		Unit:            EURPerWh,
	}))

	linked, err := ix.LinkedModelFlag("buses_t.marginal_price")
	require.NoError(t, err)
	assert.Equal(t, Flag("BZ.Model"), linked)

	u, err := ix.Unit("buses_t.marginal_price")
	require.NoError(t, err)
	assert.Equal(t, EURPerWh, u)

	linked, err = ix.LinkedModelFlag("generators_t.p")
	require.NoError(t, err)
	assert.Equal(t, Flag("generators.Model"), linked)
}

func TestDottedResolverItemTypes(t *testing.T) {
	ix := NewIndex(pypsaResolver())
	cases := map[Flag]ItemType{
		"buses.Model":            ItemModel,
		"buses_t.marginal_price": ItemTimeSeries,
		"buses.v_nom":            ItemOther,
	}
	for f, want := range cases {
		got, err := ix.ItemType(f)
		require.NoError(t, err)
		assert.Equal(t, want, got, f)
	}

	topo, err := ix.TopologyType("buses_t.marginal_price")
	require.NoError(t, err)
	assert.Equal(t, TopologyNode, topo)
}

func TestQuantityTypeFromUnit(t *testing.T) {
	ix := NewIndex(pypsaResolver())

	q, err := ix.QuantityType("generators_t.p")
	require.NoError(t, err)
	assert.Equal(t, Intensive, q)

	q, err = MWh.QuantityType()
	require.NoError(t, err)
	assert.Equal(t, Extensive, q)

	_, err = ix.QuantityType("buses.v_nom")
	assert.ErrorIs(t, err, ErrNoQuantityType)

	assert.True(t, MW.SameBase(GW))
	assert.False(t, MW.SameBase(MWh))

	_, err = LookupUnit("furlong")
	assert.ErrorIs(t, err, ErrUnknownUnit)
}

func TestMembershipColumns(t *testing.T) {
	ix := NewIndex(pypsaResolver())

	f, err := ix.LinkedModelFlagForMembershipColumn("bus")
	require.NoError(t, err)
	assert.Equal(t, Flag("buses.Model"), f)
	assert.True(t, ix.ColumnDescribesMembership("Bus"))
	assert.False(t, ix.ColumnDescribesMembership("carrier"))

	col, err := ix.MembershipColumnName("buses.Model")
	require.NoError(t, err)
	assert.Equal(t, "bus", col)

	_, err = ix.MembershipColumnName("buses_t.marginal_price")
	assert.ErrorIs(t, err, ErrNotModel)

	ix.Register(Entry{Flag: "Node.Model", ItemType: ItemModel, MembershipColumn: "node"})
	f, err = ix.LinkedModelFlagForMembershipColumn("node")
	require.NoError(t, err)
	assert.Equal(t, Flag("Node.Model"), f)
}

func TestTimeSeriesFlagsFor(t *testing.T) {
	ix := NewIndex(pypsaResolver())
	candidates := NewSet("buses.Model", "buses_t.marginal_price", "buses_t.p", "generators_t.p")

	got := ix.TimeSeriesFlagsFor("buses.Model", candidates)
	assert.Equal(t, []Flag{"buses_t.marginal_price", "buses_t.p"}, got.Slice())
}

func TestEmptyIndexWarnsOnce(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	ix := EmptyIndex(zap.New(core), "scenario")

	it, err := ix.ItemType("any")
	require.NoError(t, err)
	assert.Equal(t, ItemOther, it)

	u, err := ix.Unit("any")
	require.NoError(t, err)
	assert.Equal(t, NaU, u)

	_, err = ix.LinkedModelFlag("any")
	assert.ErrorIs(t, err, ErrUnresolved)

	assert.True(t, ix.IsEmpty())
	assert.Equal(t, 1, logs.FilterMessage("no flag index bound, using empty index").Len())
}

func TestEntryAssemblesPseudoEntry(t *testing.T) {
	ix := NewIndex(EmptyResolver{})
	e, err := ix.Entry("x")
	require.NoError(t, err)
	assert.Equal(t, Entry{
		Flag:              "x",
		ItemType:          ItemOther,
		VisualizationType: VisualizationOther,
		TopologyType:      TopologyOther,
		Unit:              NaU,
	}, e)
}

func TestMembershipColumnCaseFallbackIsStable(t *testing.T) {
	r := &DottedResolver{Memberships: map[string]string{"Bus": "buses", "BUS": "stations", "bus_1": "lines"}}

	for range 50 {
		f, err := r.LinkedModelFlagForMembershipColumn("bus")
		require.NoError(t, err)
		assert.Equal(t, Flag("stations.Model"), f)
	}

	f, err := r.LinkedModelFlagForMembershipColumn("Bus")
	require.NoError(t, err)
	assert.Equal(t, Flag("buses.Model"), f)
}
