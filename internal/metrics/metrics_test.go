package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/arborist-systems/mallocator/internal/mallocator"
)

func TestExporterCollectsAcrossSubtree(t *testing.T) {
	root, err := mallocator.New("r")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	child, err := root.CreateChild("child")
	if err != nil {
		t.Fatalf("CreateChild failed: %v", err)
	}

	ptr := child.Alloc(64)
	child.Free(ptr, 64)

	exporter := NewExporter(root)
	reg := prometheus.NewRegistry()
	if err := reg.Register(exporter); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	var found bool
	for _, mf := range families {
		if mf.GetName() != "mallocator_blocks_allocated_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelValue(m, "handle") == "r.child" && m.GetCounter().GetValue() == 1 {
				found = true
			}
		}
	}
	if !found {
		t.Fatal("expected a mallocator_blocks_allocated_total series for r.child with value 1")
	}
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
