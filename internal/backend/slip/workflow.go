package slip

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/slipledger/server/internal/backend/database"
)

// Reply texts sent back over the chat platform.
const (
	ReplyImageSaved    = "✅ บันทึกรูปแล้ว กำลังรอข้อความ..."
	ReplyDetailSaved   = "✅ ข้อมูลบันทึกเรียบร้อย"
	ReplyBadFormat     = "❌ รูปแบบข้อความไม่ถูกต้อง เช่น 39/50 พค 68"
	ReplyNoPendingSlip = "⚠️ ยังไม่มีสลิปที่รอข้อมูล กรุณาส่งรูปสลิปก่อน"
)

// Store is the subset of the record store the workflow writes to.
type Store interface {
	CreateSlip(record *database.SlipRecord) (int64, error)
	LatestSlipID(senderID string) (id int64, found bool, err error)
	SetSlipDetail(id int64, houseNo, month, year string) error
}

// ContentProvider downloads the binary content of a platform message.
type ContentProvider interface {
	MessageContent(ctx context.Context, messageID string) ([]byte, error)
}

// Replier delivers a text reply to the originating chat.
type Replier interface {
	ReplyText(ctx context.Context, replyToken, text string) error
}

// TextExtractor runs OCR on a stored image file.
type TextExtractor interface {
	ExtractText(imagePath, language string) (string, error)
}

// ImageStore persists slip images on disk and returns the stored path.
type ImageStore interface {
	Save(senderID string, data []byte) (string, error)
}

// Preprocessor transforms raw image bytes before storage and OCR.
type Preprocessor interface {
	Apply(data []byte) ([]byte, error)
}

// WorkflowConfig wires the workflow's collaborators. All fields except
// Preprocess are required.
type WorkflowConfig struct {
	Store      Store
	Contents   ContentProvider
	Replier    Replier
	Extractor  TextExtractor
	Images     ImageStore
	Preprocess Preprocessor
	Language   string
}

// Workflow correlates slip images with the record details sent afterwards.
// An image event creates exactly one record; a text event mutates at most
// the latest record of the same sender.
type Workflow struct {
	store      Store
	contents   ContentProvider
	replier    Replier
	extractor  TextExtractor
	images     ImageStore
	preprocess Preprocessor
	language   string
	now        func() time.Time
}

func NewWorkflow(config WorkflowConfig) *Workflow {
	language := config.Language
	if language == "" {
		language = "tha"
	}
	return &Workflow{
		store:      config.Store,
		contents:   config.Contents,
		replier:    config.Replier,
		extractor:  config.Extractor,
		images:     config.Images,
		preprocess: config.Preprocess,
		language:   language,
		now:        time.Now,
	}
}

// HandleImage runs the image phase: download the content, store it, OCR it,
// compute the payment marker and insert a new record with empty detail
// fields. Any failure aborts the event without a row; a file stored before
// the failure is removed again so no image exists without its record.
func (w *Workflow) HandleImage(ctx context.Context, event ImageEvent) error {
	data, err := w.contents.MessageContent(ctx, event.MessageID)
	if err != nil {
		return fmt.Errorf("failed to download message content %s: %w", event.MessageID, err)
	}

	if w.preprocess != nil {
		data, err = w.preprocess.Apply(data)
		if err != nil {
			return fmt.Errorf("failed to preprocess image for message %s: %w", event.MessageID, err)
		}
	}

	imagePath, err := w.images.Save(event.SenderID, data)
	if err != nil {
		return fmt.Errorf("failed to store image for message %s: %w", event.MessageID, err)
	}

	recorded := false
	defer func() {
		if recorded {
			return
		}
		if removeErr := os.Remove(imagePath); removeErr != nil && !os.IsNotExist(removeErr) {
			log.Warn().Err(removeErr).Str("image_path", imagePath).Msg("failed to remove orphaned slip image")
		}
	}()

	text, err := w.extractor.ExtractText(imagePath, w.language)
	if err != nil {
		return fmt.Errorf("failed to extract text from %s: %w", imagePath, err)
	}
	hasMarker := HasPaymentMarker(text)

	record := &database.SlipRecord{
		SenderID:  event.SenderID,
		HasMarker: hasMarker,
		ImagePath: imagePath,
		CreatedAt: w.now(),
	}
	id, err := w.store.CreateSlip(record)
	if err != nil {
		return fmt.Errorf("failed to create slip record: %w", err)
	}
	recorded = true

	log.Info().
		Int64("id", id).
		Str("sender_id", event.SenderID).
		Bool("has_marker", hasMarker).
		Str("image_path", imagePath).
		Msg("slip recorded")

	return w.replier.ReplyText(ctx, event.ReplyToken, ReplyImageSaved)
}

// HandleText runs the text phase: parse the record detail and fill it into
// the sender's latest record. A message that does not match the pattern is
// answered with the expected format; a sender without a prior slip gets a
// distinct notice and no write happens in either case.
func (w *Workflow) HandleText(ctx context.Context, event TextEvent) error {
	detail, ok := ParseRecordDetail(event.Text)
	if !ok {
		return w.replier.ReplyText(ctx, event.ReplyToken, ReplyBadFormat)
	}

	id, found, err := w.store.LatestSlipID(event.SenderID)
	if err != nil {
		return fmt.Errorf("failed to resolve latest slip for sender %s: %w", event.SenderID, err)
	}
	if !found {
		log.Warn().Str("sender_id", event.SenderID).Msg("record detail received without a pending slip")
		return w.replier.ReplyText(ctx, event.ReplyToken, ReplyNoPendingSlip)
	}

	if err := w.store.SetSlipDetail(id, detail.HouseNo, detail.Month, detail.Year); err != nil {
		return fmt.Errorf("failed to update slip record %d: %w", id, err)
	}

	log.Info().
		Int64("id", id).
		Str("sender_id", event.SenderID).
		Str("house_no", detail.HouseNo).
		Msg("slip detail saved")

	return w.replier.ReplyText(ctx, event.ReplyToken, ReplyDetailSaved)
}
