package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"reflow/internal/broker"
	"reflow/internal/pipeline"
	"reflow/internal/registry"
	"reflow/internal/session"
	"reflow/internal/testsupport"
)

func TestRunRecognizesSessionPages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	reg := testsupport.MustOpenRegistry(t, cfg, st)
	orch := pipeline.New(reg, st, nil)

	created := reg.Create(registry.CreateSpec{Name: "Letter"})
	for _, name := range []string{"p1.png", "p2.png"} {
		if _, _, err := reg.AddPage(created.ID, testsupport.PNG(t, 120, 80), name, session.SourceFile, "image/png"); err != nil {
			t.Fatalf("AddPage failed: %v", err)
		}
	}

	var events []broker.Event
	doc, err := orch.Run(context.Background(), created.ID, func(evt broker.Event) {
		events = append(events, evt)
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(doc.Pages) != 2 {
		t.Fatalf("expected 2 recognized pages, got %d", len(doc.Pages))
	}
	for i, page := range doc.Pages {
		if page.Index != i {
			t.Fatalf("recognized page %d has index %d", i, page.Index)
		}
		if len(page.Blocks) == 0 {
			t.Fatalf("recognized page %d has no blocks", i)
		}
		if page.Width != 120 || page.Height != 80 {
			t.Fatalf("recognized page %d has size %dx%d", i, page.Width, page.Height)
		}
	}

	want := []string{
		broker.EventRecognitionStart,
		broker.EventPageStart, broker.EventPageComplete,
		broker.EventPageStart, broker.EventPageComplete,
		broker.EventRecognitionFinished,
	}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d: %+v", len(want), len(events), events)
	}
	for i, name := range want {
		if events[i].Name != name {
			t.Fatalf("event %d is %q, want %q", i, events[i].Name, name)
		}
	}
	if events[0].TotalPages != 2 {
		t.Fatalf("recognition-start should carry total pages: %+v", events[0])
	}
	if *events[1].PageIndex != 0 || *events[3].PageIndex != 1 {
		t.Fatal("page events carry wrong indexes")
	}

	sess, err := reg.Get(created.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if sess.Status != session.StatusReady || sess.Document == nil {
		t.Fatalf("expected ready session with saved document, got %s", sess.Status)
	}
	if sess.LastRecognizedAt == nil {
		t.Fatal("expected LastRecognizedAt set after a successful run")
	}
}

func TestRunRejectsEmptySession(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	reg := testsupport.MustOpenRegistry(t, cfg, st)
	orch := pipeline.New(reg, st, nil)

	created := reg.Create(registry.CreateSpec{Name: "Empty"})
	_, err := orch.Run(context.Background(), created.ID, func(broker.Event) {})
	if !errors.Is(err, pipeline.ErrNoPages) {
		t.Fatalf("expected ErrNoPages, got %v", err)
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	reg := testsupport.MustOpenRegistry(t, cfg, st)
	orch := pipeline.New(reg, st, nil)

	created := reg.Create(registry.CreateSpec{Name: "Cancelled"})
	if _, _, err := reg.AddPage(created.ID, testsupport.PNG(t, 40, 30), "p.png", session.SourceFile, "image/png"); err != nil {
		t.Fatalf("AddPage failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := orch.Run(ctx, created.ID, func(broker.Event) {}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBandLayoutFindsInkBand(t *testing.T) {
	pre := pipeline.NewThresholdPreprocessor()
	layout := pipeline.NewBandLayoutAnalyzer()

	img := testsupport.DecodePNG(t, testsupport.PNG(t, 100, 90))
	blocks := layout.Analyze(pre.Process(img))
	if len(blocks) == 0 {
		t.Fatal("expected at least one layout block")
	}
	block := blocks[0]
	if len(block.BBox) != 4 {
		t.Fatalf("expected x/y/w/h bbox, got %v", block.BBox)
	}
	if block.BBox[3] <= 0 || block.BBox[3] >= 90 {
		t.Fatalf("band height should cover only the inked band, got %v", block.BBox)
	}
}
