package dot

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/matzehuels/codeflow/pkg/layout"
)

// placement holds absolute boxes keyed by DOT identifier, in diagram units
// with a top-left origin.
type placement struct {
	width, height float64
	boxes         map[string]layout.Rect
}

type jsonOutput struct {
	BB      string       `json:"bb"`
	Objects []jsonObject `json:"objects"`
}

type jsonObject struct {
	Name   string `json:"name"`
	BB     string `json:"bb"`
	Pos    string `json:"pos"`
	Width  string `json:"width"`
	Height string `json:"height"`
}

// parseOutput reads Graphviz "json" output. Graphviz uses points with the
// origin at the bottom left; y is flipped against the graph bounding box.
func parseOutput(data []byte) (*placement, error) {
	var out jsonOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode graphviz output: %w", err)
	}
	bb, err := parseFloats(out.BB, 4)
	if err != nil {
		return nil, fmt.Errorf("graph bb: %w", err)
	}
	p := &placement{
		width:  bb[2] - bb[0],
		height: bb[3],
		boxes:  make(map[string]layout.Rect, len(out.Objects)),
	}

	for _, obj := range out.Objects {
		switch {
		case strings.HasPrefix(obj.Name, "cluster_") && obj.BB != "":
			b, err := parseFloats(obj.BB, 4)
			if err != nil {
				return nil, fmt.Errorf("%s bb: %w", obj.Name, err)
			}
			p.boxes[obj.Name] = layout.Rect{
				X:      b[0],
				Y:      p.height - b[3],
				Width:  b[2] - b[0],
				Height: b[3] - b[1],
			}
		case obj.Pos != "":
			c, err := parseFloats(obj.Pos, 2)
			if err != nil {
				return nil, fmt.Errorf("%s pos: %w", obj.Name, err)
			}
			w, err1 := strconv.ParseFloat(obj.Width, 64)
			h, err2 := strconv.ParseFloat(obj.Height, 64)
			if err1 != nil || err2 != nil {
				return nil, fmt.Errorf("%s size: %q x %q", obj.Name, obj.Width, obj.Height)
			}
			w, h = w*pointsPerInch, h*pointsPerInch
			p.boxes[obj.Name] = layout.Rect{
				X:      c[0] - w/2,
				Y:      p.height - c[1] - h/2,
				Width:  w,
				Height: h,
			}
		}
	}
	return p, nil
}

func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("want %d numbers, got %q", n, s)
	}
	out := make([]float64, n)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
