package dag_test

import (
	"fmt"

	"github.com/matzehuels/workbookdeps/pkg/dag"
)

func ExampleDAG_basic() {
	// Profit Ratio → Profit → Sales
	g := dag.New(nil)
	_ = g.AddNode(dag.Node{ID: "ratio"})
	_ = g.AddNode(dag.Node{ID: "profit"})
	_ = g.AddNode(dag.Node{ID: "sales"})
	_, _ = g.AddEdge(dag.Edge{From: "ratio", To: "profit"})
	_, _ = g.AddEdge(dag.Edge{From: "profit", To: "sales"})

	fmt.Println("Nodes:", g.NodeCount())
	fmt.Println("Edges:", g.EdgeCount())
	// Output:
	// Nodes: 3
	// Edges: 2
}

func ExampleDAG_traversal() {
	g := dag.New(nil)
	_ = g.AddNode(dag.Node{ID: "profit"})
	_ = g.AddNode(dag.Node{ID: "sales"})
	_ = g.AddNode(dag.Node{ID: "cost"})
	_, _ = g.AddEdge(dag.Edge{From: "profit", To: "sales"})
	_, _ = g.AddEdge(dag.Edge{From: "profit", To: "cost"})

	fmt.Println("Children of profit:", g.Children("profit"))
	fmt.Println("Parents of sales:", g.Parents("sales"))
	fmt.Println("Out-degree of profit:", g.OutDegree("profit"))
	// Output:
	// Children of profit: [sales cost]
	// Parents of sales: [profit]
	// Out-degree of profit: 2
}

func ExampleDAG_Sinks() {
	g := dag.New(nil)
	_ = g.AddNode(dag.Node{ID: "profit"})
	_ = g.AddNode(dag.Node{ID: "sales"})
	_ = g.AddNode(dag.Node{ID: "cost"})
	_, _ = g.AddEdge(dag.Edge{From: "profit", To: "sales"})
	_, _ = g.AddEdge(dag.Edge{From: "profit", To: "cost"})

	fmt.Println(dag.NodeIDs(g.Sinks()))
	// Output:
	// [cost sales]
}
