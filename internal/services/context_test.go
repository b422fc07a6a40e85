package services_test

import (
	"context"
	"testing"

	"folio/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithDocument(ctx, "/docs/book.pdf")
	ctx = services.WithStage(ctx, "extracting")
	ctx = services.WithRunID(ctx, "run-123")
	ctx = services.WithPageIndex(ctx, 4)

	if doc, ok := services.DocumentFromContext(ctx); !ok || doc != "/docs/book.pdf" {
		t.Fatalf("unexpected document: %v %v", doc, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "extracting" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if rid, ok := services.RunIDFromContext(ctx); !ok || rid != "run-123" {
		t.Fatalf("unexpected run id: %v %v", rid, ok)
	}
	if idx, ok := services.PageIndexFromContext(ctx); !ok || idx != 4 {
		t.Fatalf("unexpected page index: %v %v", idx, ok)
	}
}

func TestStageBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	if _, ok := services.PageIndexFromContext(ctx); ok {
		t.Fatal("expected no page index value")
	}
}
