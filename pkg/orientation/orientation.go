// Package orientation implements the width/height gate applied to every
// fetched image.
package orientation

import (
	"fmt"
	"strings"
)

// Orientation is the requested shape of an image
type Orientation int

const (
	Any Orientation = iota
	Wide
	Tall
)

// Parse converts a name into an Orientation. The empty string means Any.
func Parse(s string) (Orientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any":
		return Any, nil
	case "wide", "landscape":
		return Wide, nil
	case "tall", "portrait":
		return Tall, nil
	default:
		return Any, fmt.Errorf("unknown orientation %q (want any, wide or tall)", s)
	}
}

func (o Orientation) String() string {
	switch o {
	case Wide:
		return "wide"
	case Tall:
		return "tall"
	default:
		return "any"
	}
}

// Matches reports whether an image of the given size satisfies o.
// Square images count as wide.
func (o Orientation) Matches(width, height int) bool {
	switch o {
	case Wide:
		return width >= height
	case Tall:
		return height > width
	default:
		return true
	}
}
