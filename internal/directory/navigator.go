package directory

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/maruel/xbase/internal/models"
)

// HomeName is the name of the root breadcrumb.
const HomeName = "Home"

// Crumb is one breadcrumb.
type Crumb struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Navigator tracks the breadcrumb trail from the root folder to the current
// folder.
type Navigator struct {
	crumbs []Crumb
}

// NewNavigator starts at the root folder.
func NewNavigator(rootID string) *Navigator {
	return &Navigator{crumbs: []Crumb{{ID: rootID, Name: HomeName}}}
}

// Current returns the current folder.
func (n *Navigator) Current() Crumb {
	return n.crumbs[len(n.crumbs)-1]
}

// Crumbs returns a copy of the trail.
func (n *Navigator) Crumbs() []Crumb {
	return slices.Clone(n.crumbs)
}

// Enter descends into f.
func (n *Navigator) Enter(f models.Folder) {
	n.crumbs = append(n.crumbs, Crumb{ID: f.ID, Name: f.Name})
}

// Jump returns to the i-th breadcrumb, dropping the ones after it.
func (n *Navigator) Jump(i int) error {
	if i < 0 || i >= len(n.crumbs) {
		return fmt.Errorf("breadcrumb %d out of range [0, %d)", i, len(n.crumbs))
	}
	n.crumbs = n.crumbs[:i+1]
	return nil
}

// Up moves to the parent folder. It is a no-op at the root.
func (n *Navigator) Up() {
	if len(n.crumbs) > 1 {
		n.crumbs = n.crumbs[:len(n.crumbs)-1]
	}
}

func (n *Navigator) String() string {
	names := make([]string, len(n.crumbs))
	for i, c := range n.crumbs {
		names[i] = c.Name
	}
	return strings.Join(names, " / ")
}

// Walk descends n through the slash separated folder names of path, starting
// at the current folder. ".." moves up.
func (c *Client) Walk(ctx context.Context, n *Navigator, path string) error {
	for name := range strings.SplitSeq(path, "/") {
		switch name {
		case "", ".":
			continue
		case "..":
			n.Up()
			continue
		}
		folders, err := c.Folders(ctx, n.Current().ID)
		if err != nil {
			return err
		}
		i := slices.IndexFunc(folders, func(f models.Folder) bool { return f.Name == name })
		if i < 0 {
			return fmt.Errorf("no folder %q in %s", name, n)
		}
		n.Enter(folders[i])
	}
	return nil
}
