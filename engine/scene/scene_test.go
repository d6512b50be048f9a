package scene

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/asset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSceneAssignsIDs(t *testing.T) {
	child := NewNode("child")
	parent := NewNode("parent").Add(child)
	fixed := NewNode("fixed")
	fixed.ID = 1

	s := NewScene("demo", WithNodes(fixed, parent))
	assert.Equal(t, "demo", s.Name())
	assert.Equal(t, 3, s.Count())
	assert.Equal(t, NodeID(1), fixed.ID)
	assert.NotEqual(t, parent.ID, child.ID)
	assert.NotZero(t, child.ID)

	got, ok := s.Node(child.ID)
	require.True(t, ok)
	assert.Same(t, child, got)
	assert.Equal(t, []*Node{fixed, parent}, s.Root().Children)
}

func TestAttach(t *testing.T) {
	s := NewScene("demo")
	a, ok := s.Attach(0, NewNode("a"))
	require.True(t, ok)
	b, ok := s.Attach(a, NewNode("b"))
	require.True(t, ok)

	parent, _ := s.Node(a)
	require.Len(t, parent.Children, 1)
	assert.Equal(t, b, parent.Children[0].ID)

	_, ok = s.Attach(999, NewNode("orphan"))
	assert.False(t, ok)
	assert.Equal(t, 2, s.Count())
}

func TestNodeFlags(t *testing.T) {
	n := NewNode("glass")
	assert.True(t, n.Visible)
	assert.False(t, n.Has(NodeFlagTransparent))
	n.Flags |= NodeFlagTransparent
	assert.True(t, n.Has(NodeFlagTransparent))
}

const sceneYAML = `
name: yard
nodes:
  - name: floor
    mesh: plane
    material: grass
    scale: [10, 1, 10]
  - name: crate
    mesh: cube
    position: [1, 0.5, 0]
    rotation: [0, 90, 0]
    children:
      - name: lid
        mesh: cube
        material: glass
        transparent: true
        hidden: true
`

func TestParseScene(t *testing.T) {
	s, err := ParseScene([]byte(sceneYAML))
	require.NoError(t, err)
	assert.Equal(t, "yard", s.Name())
	assert.Equal(t, 3, s.Count())

	top := s.Root().Children
	require.Len(t, top, 2)
	floor, crate := top[0], top[1]

	assert.Equal(t, &MeshInstance{Mesh: "plane", Material: "grass"}, floor.Mesh)
	assert.Equal(t, common.Vec3{10, 1, 10}, floor.Local.Scale)
	assert.True(t, floor.Visible)

	assert.Equal(t, asset.ID(""), crate.Mesh.Material)
	assert.Equal(t, common.Vec3{1, 0.5, 0}, crate.Local.Position)
	assert.Equal(t, common.Vec3{1, 1, 1}, crate.Local.Scale)
	p := crate.Local.Matrix().TransformPoint(common.Vec3{1, 0, 0})
	assert.InDelta(t, 1, p[0], 1e-5)
	assert.InDelta(t, -1, p[2], 1e-5)

	require.Len(t, crate.Children, 1)
	lid := crate.Children[0]
	assert.False(t, lid.Visible)
	assert.True(t, lid.Has(NodeFlagTransparent))
}

func TestParseSceneErrors(t *testing.T) {
	_, err := ParseScene([]byte("name: x\nnodes: []\n"))
	assert.Error(t, err)

	_, err = ParseScene([]byte("name: x\nnodes:\n  - name: bad\n    material: red\n"))
	assert.ErrorContains(t, err, "without a mesh")

	_, err = ParseScene([]byte("nodes: {"))
	assert.Error(t, err)
}

func TestLoadScene(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sceneYAML), 0o644))

	s, err := LoadScene(path)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Count())

	_, err = LoadScene(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
