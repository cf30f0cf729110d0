package graph

// =============================================================================
// Enumerations
// =============================================================================

// Node kinds.
const (
	KindFunction = "function"
	KindMethod   = "method"
	KindClass    = "class"
	KindModule   = "module"
	KindFile     = "file"
)

// Edge kinds.
const (
	EdgeCalls      = "calls"
	EdgeImports    = "imports"
	EdgeExtends    = "extends"
	EdgeImplements = "implements"
	EdgeUses       = "uses"
)

// Edge importance levels.
const (
	ImportancePrimary   = "primary"
	ImportanceSecondary = "secondary"
	ImportanceTertiary  = "tertiary"
)

// Layout modes understood by the layout compiler.
const (
	ModeLayered = "layered"
	ModeForce   = "force"
	ModeStress  = "stress"
)

// Layout directions.
const (
	DirectionTB = "TB"
	DirectionBT = "BT"
	DirectionLR = "LR"
	DirectionRL = "RL"
)

// =============================================================================
// Graph - Aggregate Root
// =============================================================================

// Graph is a parsed codeflow document.
type Graph struct {
	Version  string      `json:"version" validate:"required"`
	Metadata Metadata    `json:"metadata"`
	Nodes    []Node      `json:"nodes" validate:"dive"`
	Edges    []Edge      `json:"edges" validate:"dive"`
	Groups   []Group     `json:"groups,omitempty" validate:"omitempty,dive"`
	Layout   *LayoutHint `json:"layout,omitempty"`
	Legend   *Legend     `json:"legend,omitempty"`
}

// Metadata describes the document as a whole.
type Metadata struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description,omitempty"`
	Generated   string `json:"generated" validate:"required"`
	Scope       string `json:"scope,omitempty"`
}

// LayoutHint selects the solver mode and flow direction for the document.
// Empty fields fall back to the configured defaults.
type LayoutHint struct {
	Type      string `json:"type,omitempty" validate:"omitempty,oneof=layered force stress"`
	Direction string `json:"direction,omitempty" validate:"omitempty,oneof=TB BT LR RL"`
}

// Legend lists the colors used by edges so that a viewer can filter by them.
type Legend struct {
	Title string       `json:"title,omitempty"`
	Items []LegendItem `json:"items" validate:"dive"`
}

// LegendItem is one colored entry of the legend.
type LegendItem struct {
	Label string `json:"label" validate:"required"`
	Color string `json:"color" validate:"required"`
	Kind  string `json:"kind,omitempty"`
}

// =============================================================================
// Node, Edge, Group
// =============================================================================

// Node is a code entity.
type Node struct {
	ID          string   `json:"id" validate:"required"`
	Label       string   `json:"label" validate:"required"`
	Kind        string   `json:"kind" validate:"required,oneof=function method class module file"`
	Description string   `json:"description,omitempty"`
	Location    Location `json:"location"`
	GroupID     string   `json:"groupId,omitempty"`
	Position    *Point   `json:"position,omitempty"` // Manual override, authoritative when set
}

// Location points at the source range a node was extracted from.
type Location struct {
	File      string `json:"file" validate:"required"`
	StartLine int    `json:"startLine" validate:"gte=1"`
	EndLine   int    `json:"endLine,omitempty" validate:"omitempty,gtefield=StartLine"`
}

// Edge is a directed relationship between two nodes.
type Edge struct {
	ID         string `json:"id" validate:"required"`
	Source     string `json:"source" validate:"required"`
	Target     string `json:"target" validate:"required"`
	Kind       string `json:"kind" validate:"required,oneof=calls imports extends implements uses"`
	Importance string `json:"importance,omitempty" validate:"omitempty,oneof=primary secondary tertiary"`
	Color      string `json:"color,omitempty"`
}

// Group is a visual container for nodes that reference it via GroupID.
type Group struct {
	ID          string `json:"id" validate:"required"`
	Label       string `json:"label" validate:"required"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
	Position    *Point `json:"position,omitempty"` // Manual override
	Size        *Size  `json:"size,omitempty"`     // Manual override
}

// Point is a 2D coordinate in diagram space (top-left origin, y down).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a width/height pair.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// =============================================================================
// Position changes
// =============================================================================

// PositionChanges is a batch of manual layout overrides.
// It is the payload of the updatePositions protocol message.
type PositionChanges struct {
	NodePositions  []EntityPosition `json:"nodePositions,omitempty"`
	GroupPositions []EntityPosition `json:"groupPositions,omitempty"`
	GroupSizes     []EntitySize     `json:"groupSizes,omitempty"`
}

// EntityPosition assigns a position to a node or group.
type EntityPosition struct {
	ID       string `json:"id"`
	Position Point  `json:"position"`
}

// EntitySize assigns a size to a group.
type EntitySize struct {
	ID   string `json:"id"`
	Size Size   `json:"size"`
}

// Empty reports whether the batch carries no changes.
func (c PositionChanges) Empty() bool {
	return len(c.NodePositions) == 0 && len(c.GroupPositions) == 0 && len(c.GroupSizes) == 0
}

// Len returns the total number of changes in the batch.
func (c PositionChanges) Len() int {
	return len(c.NodePositions) + len(c.GroupPositions) + len(c.GroupSizes)
}
