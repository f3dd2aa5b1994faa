package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/google/uuid"

	"reflow/internal/broker"
	"reflow/internal/document"
	"reflow/internal/logging"
	"reflow/internal/registry"
	"reflow/internal/store"
)

// ErrNoPages reports a recognition attempt on a session without pages.
var ErrNoPages = errors.New("session has no pages to process")

// LayoutBlock is one candidate text region found by the layout analyzer.
// BBox is x, y, width, height in page pixels.
type LayoutBlock struct {
	ID   string
	Type document.BlockType
	BBox []int
}

// Preprocessor cleans up a page image before layout analysis.
type Preprocessor interface {
	Process(img image.Image) image.Image
}

// LayoutAnalyzer finds candidate text regions on a processed page image.
type LayoutAnalyzer interface {
	Analyze(img image.Image) []LayoutBlock
}

// Recognizer turns one layout block of a page image into recognized text.
type Recognizer interface {
	Recognize(img image.Image, block LayoutBlock) document.Block
}

// Emitter receives progress events during a run.
type Emitter func(evt broker.Event)

// Orchestrator runs the recognition pipeline for one session at a time.
type Orchestrator struct {
	registry   *registry.Registry
	store      *store.Store
	pre        Preprocessor
	layout     LayoutAnalyzer
	recognizer Recognizer
	logger     *slog.Logger
}

// New builds an orchestrator with the default built-in collaborators.
func New(reg *registry.Registry, st *store.Store, logger *slog.Logger) *Orchestrator {
	return NewWithCollaborators(reg, st, logger, NewThresholdPreprocessor(), NewBandLayoutAnalyzer(), NewPlaceholderRecognizer())
}

// NewWithCollaborators builds an orchestrator around explicit collaborators.
func NewWithCollaborators(reg *registry.Registry, st *store.Store, logger *slog.Logger, pre Preprocessor, layout LayoutAnalyzer, recognizer Recognizer) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		registry:   reg,
		store:      st,
		pre:        pre,
		layout:     layout,
		recognizer: recognizer,
		logger:     logger,
	}
}

// Run processes every page of the session in index order and saves the
// resulting document on success. Cancellation is honored at page and block
// boundaries.
func (o *Orchestrator) Run(ctx context.Context, sessionID uuid.UUID, emit Emitter) (*document.Document, error) {
	sess, err := o.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if len(sess.Pages) == 0 {
		return nil, ErrNoPages
	}

	emit(broker.Event{
		Name:       broker.EventRecognitionStart,
		TotalPages: len(sess.Pages),
	})

	docPages := make([]document.Page, 0, len(sess.Pages))
	for i, page := range sess.Pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emit(broker.Event{
			Name:      broker.EventPageStart,
			PageIndex: broker.PageRef(i),
		})

		docPage, err := o.processPage(ctx, sess.ID, page.Filename, i)
		if err != nil {
			return nil, err
		}
		docPages = append(docPages, docPage)

		emit(broker.Event{
			Name:      broker.EventPageComplete,
			PageIndex: broker.PageRef(i),
		})
	}

	doc := document.New(docPages)
	if _, err := o.registry.SaveDocument(sessionID, doc); err != nil {
		return nil, err
	}
	emit(broker.Event{
		Name:  broker.EventRecognitionFinished,
		Pages: len(docPages),
	})

	o.logger.Info("recognition finished",
		logging.String("session", sessionID.String()),
		logging.Int("pages", len(docPages)))
	return doc, nil
}

func (o *Orchestrator) processPage(ctx context.Context, sessionID uuid.UUID, filename string, index int) (document.Page, error) {
	data, err := o.store.ReadPage(sessionID, filename)
	if err != nil {
		return document.Page{}, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return document.Page{}, fmt.Errorf("decode page %d: %w", index, err)
	}

	processed := o.pre.Process(img)
	blocks := o.layout.Analyze(processed)

	docBlocks := make([]document.Block, 0, len(blocks))
	for _, block := range blocks {
		if err := ctx.Err(); err != nil {
			return document.Page{}, err
		}
		docBlocks = append(docBlocks, o.recognizer.Recognize(processed, block))
	}

	bounds := processed.Bounds()
	return document.Page{
		Index:  index,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Blocks: docBlocks,
	}, nil
}
