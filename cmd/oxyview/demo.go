package main

import (
	"slices"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/asset"
	"github.com/Carmen-Shannon/oxy-render/engine/scene"
	"github.com/chewxy/math32"
)

const demoSpacing float32 = 3

// demoScene lays every manifest mesh out on a square grid, cycling through the manifest
// materials, so a manifest can be viewed without a scene file.
func demoScene(m *asset.Manifest) scene.Scene {
	meshes := make([]asset.ID, 0, len(m.Meshes))
	for id := range m.Meshes {
		meshes = append(meshes, id)
	}
	slices.Sort(meshes)
	materials := make([]asset.ID, 0, len(m.Materials))
	for id := range m.Materials {
		materials = append(materials, id)
	}
	slices.Sort(materials)

	side := int(math32.Ceil(math32.Sqrt(float32(len(meshes)))))
	offset := float32(side-1) * demoSpacing / 2
	nodes := make([]*scene.Node, 0, len(meshes))
	for i, id := range meshes {
		n := scene.NewNode(string(id))
		n.Local.Position = common.Vec3{float32(i%side)*demoSpacing - offset, 0, float32(i/side)*demoSpacing - offset}
		inst := &scene.MeshInstance{Mesh: id}
		if len(materials) > 0 {
			inst.Material = materials[i%len(materials)]
		}
		n.Mesh = inst
		nodes = append(nodes, n)
	}
	return scene.NewScene("demo", scene.WithNodes(nodes...))
}

// meshNodes returns the IDs of every node that draws a mesh, in pre-order.
func meshNodes(sc scene.Scene) []scene.NodeID {
	var ids []scene.NodeID
	var walk func(n *scene.Node)
	walk = func(n *scene.Node) {
		if n == nil {
			return
		}
		if n.Mesh != nil {
			ids = append(ids, n.ID)
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(sc.Root())
	return ids
}
