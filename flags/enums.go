package flags

import "fmt"

// ItemType classifies what a flag returns.
type ItemType string

const (
	ItemModel      ItemType = "Model"
	ItemTimeSeries ItemType = "TimeSeries"
	ItemOther      ItemType = "Other"
)

// VisualizationType hints how a flag is drawn on a map.
type VisualizationType string

const (
	VisualizationArea   VisualizationType = "Area"
	VisualizationPoint  VisualizationType = "Point"
	VisualizationLine   VisualizationType = "Line"
	VisualizationBorder VisualizationType = "Border"
	VisualizationOther  VisualizationType = "Other"
)

// TopologyType describes the network role of the objects behind a flag.
type TopologyType string

const (
	TopologyArea                 TopologyType = "Area"
	TopologyNode                 TopologyType = "Node"
	TopologyNodeConnectedElement TopologyType = "NodeConnectedElement"
	TopologyEdge                 TopologyType = "Edge"
	TopologyOther                TopologyType = "Other"
)

// QuantityType governs how a quantity behaves when time granularity changes.
// Intensive quantities are replicated or averaged, extensive ones are split
// or summed.
type QuantityType string

const (
	Intensive QuantityType = "intensive"
	Extensive QuantityType = "extensive"
)

// ParseItemType accepts the exact enum names.
func ParseItemType(s string) (ItemType, error) {
	switch t := ItemType(s); t {
	case ItemModel, ItemTimeSeries, ItemOther:
		return t, nil
	}
	return "", fmt.Errorf("flags: unknown item type %q", s)
}

// ParseVisualizationType accepts the exact enum names.
func ParseVisualizationType(s string) (VisualizationType, error) {
	switch t := VisualizationType(s); t {
	case VisualizationArea, VisualizationPoint, VisualizationLine, VisualizationBorder, VisualizationOther:
		return t, nil
	}
	return "", fmt.Errorf("flags: unknown visualization type %q", s)
}

// ParseTopologyType accepts the exact enum names.
func ParseTopologyType(s string) (TopologyType, error) {
	switch t := TopologyType(s); t {
	case TopologyArea, TopologyNode, TopologyNodeConnectedElement, TopologyEdge, TopologyOther:
		return t, nil
	}
	return "", fmt.Errorf("flags: unknown topology type %q", s)
}
