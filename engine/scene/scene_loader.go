package scene

import (
	"errors"
	"fmt"
	"os"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/asset"
	"gopkg.in/yaml.v3"
)

// NodeDescription is the YAML form of a node. Rotation is Euler angles in degrees.
type NodeDescription struct {
	Name        string            `yaml:"name"`
	Mesh        asset.ID          `yaml:"mesh,omitempty"`
	Material    asset.ID          `yaml:"material,omitempty"`
	Position    common.Vec3       `yaml:"position,omitempty"`
	Rotation    common.Vec3       `yaml:"rotation,omitempty"`
	Scale       *common.Vec3      `yaml:"scale,omitempty"`
	Hidden      bool              `yaml:"hidden,omitempty"`
	Transparent bool              `yaml:"transparent,omitempty"`
	Children    []NodeDescription `yaml:"children,omitempty"`
}

// Description is the YAML form of a scene.
type Description struct {
	Name  string            `yaml:"name"`
	Nodes []NodeDescription `yaml:"nodes"`
}

func (d NodeDescription) node() (*Node, error) {
	if d.Mesh.IsNil() && !d.Material.IsNil() {
		return nil, fmt.Errorf("node %q: material %q set without a mesh", d.Name, d.Material)
	}
	n := NewNode(d.Name)
	n.Local.Position = d.Position
	n.Local.Rotation = common.QuatFromEulerDegrees(d.Rotation)
	if d.Scale != nil {
		n.Local.Scale = *d.Scale
	}
	n.Visible = !d.Hidden
	if d.Transparent {
		n.Flags |= NodeFlagTransparent
	}
	if !d.Mesh.IsNil() {
		n.Mesh = &MeshInstance{Mesh: d.Mesh, Material: d.Material}
	}
	for _, cd := range d.Children {
		c, err := cd.node()
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, c)
	}
	return n, nil
}

// ParseScene builds a scene from its YAML description.
//
// Parameters:
//   - data: the YAML document
//
// Returns:
//   - Scene: the scene
//   - error: error if the document cannot be parsed or describes an invalid node
func ParseScene(data []byte) (Scene, error) {
	var d Description
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse scene: %w", err)
	}
	if len(d.Nodes) == 0 {
		return nil, errors.New("parse scene: no nodes")
	}
	nodes := make([]*Node, 0, len(d.Nodes))
	for _, nd := range d.Nodes {
		n, err := nd.node()
		if err != nil {
			return nil, fmt.Errorf("parse scene: %w", err)
		}
		nodes = append(nodes, n)
	}
	return NewScene(d.Name, WithNodes(nodes...)), nil
}

// LoadScene reads a YAML scene description from disk.
//
// Parameters:
//   - path: path to the scene file
//
// Returns:
//   - Scene: the scene
//   - error: error if the file cannot be read or parsed
func LoadScene(path string) (Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseScene(data)
}
