package backend

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/slipledger/server/internal/backend/database"
	"github.com/slipledger/server/internal/backend/dedup"
	"github.com/slipledger/server/internal/backend/imagestore"
	"github.com/slipledger/server/internal/backend/messaging"
	"github.com/slipledger/server/internal/backend/slip"
	"github.com/slipledger/server/internal/common"
	"github.com/slipledger/server/internal/core"
)

const testChannelSecret = "test-channel-secret"

type fakeContents struct {
	data []byte
}

func (c *fakeContents) MessageContent(_ context.Context, messageID string) ([]byte, error) {
	return c.data, nil
}

type fakeReplier struct {
	replies []string
}

func (r *fakeReplier) ReplyText(_ context.Context, replyToken, text string) error {
	r.replies = append(r.replies, text)
	return nil
}

type fakeExtractor struct {
	text string
	err  error
}

func (e *fakeExtractor) ExtractText(imagePath, language string) (string, error) {
	return e.text, e.err
}

type testEnv struct {
	server      *echo.Echo
	coreService *core.CoreService
	replier     *fakeReplier
	extractor   *fakeExtractor
}

func newTestEnv(t *testing.T, guard *dedup.Guard) *testEnv {
	t.Helper()

	config := &core.ServiceConfig{
		Database:       core.Database{Type: "sqlite", ConnectionString: ":memory:"},
		ImageDirectory: t.TempDir(),
	}
	coreService, err := core.NewCoreService(config)
	if err != nil {
		t.Fatalf("NewCoreService error: %v", err)
	}
	t.Cleanup(func() { _ = coreService.Close() })

	images, err := imagestore.New(config.ImageDirectory)
	if err != nil {
		t.Fatalf("imagestore.New error: %v", err)
	}

	replier := &fakeReplier{}
	extractor := &fakeExtractor{text: "ยอดชำระ 300 บาท"}
	workflow := slip.NewWorkflow(slip.WorkflowConfig{
		Store:     coreService.Database(),
		Contents:  &fakeContents{data: []byte("jpegdata")},
		Replier:   replier,
		Extractor: extractor,
		Images:    images,
		Language:  "tha",
	})

	parser, err := messaging.NewClient("test-access-token", testChannelSecret)
	if err != nil {
		t.Fatalf("messaging.NewClient error: %v", err)
	}

	server := echo.New()
	server.Validator = common.NewRequestValidator()
	NewAPIService(coreService, parser, workflow, guard).SetRoutes(server)

	return &testEnv{
		server:      server,
		coreService: coreService,
		replier:     replier,
		extractor:   extractor,
	}
}

func (env *testEnv) post(t *testing.T, secret, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	req.Header.Set("x-line-signature", base64.StdEncoding.EncodeToString(mac.Sum(nil)))

	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	return rec
}

func webhookBody(events ...string) string {
	return `{"destination":"Udeadbeef","events":[` + strings.Join(events, ",") + `]}`
}

func imageMessageEvent(userID, messageID, replyToken, eventID string) string {
	return `{"type":"message","mode":"active","timestamp":1717000000000,` +
		`"webhookEventId":"` + eventID + `","deliveryContext":{"isRedelivery":false},` +
		`"replyToken":"` + replyToken + `","source":{"type":"user","userId":"` + userID + `"},` +
		`"message":{"type":"image","id":"` + messageID + `","quoteToken":"q","contentProvider":{"type":"line"}}}`
}

func textMessageEvent(userID, text, replyToken, eventID string) string {
	return `{"type":"message","mode":"active","timestamp":1717000000000,` +
		`"webhookEventId":"` + eventID + `","deliveryContext":{"isRedelivery":false},` +
		`"replyToken":"` + replyToken + `","source":{"type":"user","userId":"` + userID + `"},` +
		`"message":{"type":"text","id":"tm-1","quoteToken":"q","text":"` + text + `"}}`
}

func (env *testEnv) allSlips(t *testing.T) []*database.SlipRecord {
	t.Helper()

	records, err := env.coreService.AllSlips()
	if err != nil {
		t.Fatalf("AllSlips error: %v", err)
	}
	return records
}

func TestCallback_InvalidSignature(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.post(t, "wrong-secret", webhookBody(imageMessageEvent("U1", "m-1", "rt-1", "evt-1")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if len(env.allSlips(t)) != 0 {
		t.Errorf("expected no side effects for an invalid signature")
	}
}

func TestCallback_ImageThenTextScenario(t *testing.T) {
	env := newTestEnv(t, nil)

	// Image from U1 creates a record with the marker set
	rec := env.post(t, testChannelSecret, webhookBody(imageMessageEvent("U1", "m-1", "rt-1", "evt-1")))
	if rec.Code != http.StatusOK {
		t.Fatalf("image event status = %d, body %s", rec.Code, rec.Body.String())
	}
	records := env.allSlips(t)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if !records[0].HasMarker {
		t.Errorf("expected HasMarker true")
	}
	if records[0].HouseNo != "" || records[0].Month != "" || records[0].Year != "" {
		t.Errorf("expected empty detail fields: %+v", records[0])
	}

	// Matching text from U1 fills the detail into the same record
	rec = env.post(t, testChannelSecret, webhookBody(textMessageEvent("U1", "39/50 พค 68", "rt-2", "evt-2")))
	if rec.Code != http.StatusOK {
		t.Fatalf("text event status = %d, body %s", rec.Code, rec.Body.String())
	}
	records = env.allSlips(t)
	if len(records) != 1 {
		t.Fatalf("text event must not create a record, got %d", len(records))
	}
	if records[0].HouseNo != "39/50" || records[0].Month != "พค" || records[0].Year != "68" {
		t.Errorf("record not updated: %+v", records[0])
	}

	// Unmatched text writes nothing and produces the format-error reply
	rec = env.post(t, testChannelSecret, webhookBody(textMessageEvent("U1", "hello", "rt-3", "evt-3")))
	if rec.Code != http.StatusOK {
		t.Fatalf("text event status = %d", rec.Code)
	}
	records = env.allSlips(t)
	if len(records) != 1 || records[0].HouseNo != "39/50" {
		t.Errorf("unmatched text modified the store: %+v", records)
	}
	last := env.replier.replies[len(env.replier.replies)-1]
	if last != slip.ReplyBadFormat {
		t.Errorf("expected format-error reply, got %q", last)
	}
}

func TestCallback_NoMarkerWithoutCurrencyWord(t *testing.T) {
	env := newTestEnv(t, nil)
	env.extractor.text = "300 dollars"

	rec := env.post(t, testChannelSecret, webhookBody(imageMessageEvent("U1", "m-1", "rt-1", "evt-1")))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	records := env.allSlips(t)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].HasMarker {
		t.Errorf("expected HasMarker false")
	}
}

func TestCallback_IgnoresUnknownMessageTypes(t *testing.T) {
	env := newTestEnv(t, nil)

	sticker := `{"type":"message","mode":"active","timestamp":1717000000000,` +
		`"webhookEventId":"evt-1","deliveryContext":{"isRedelivery":false},` +
		`"replyToken":"rt-1","source":{"type":"user","userId":"U1"},` +
		`"message":{"type":"sticker","id":"sm-1","packageId":"1","stickerId":"2"}}`

	rec := env.post(t, testChannelSecret, webhookBody(sticker))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(env.allSlips(t)) != 0 {
		t.Errorf("sticker message created a record")
	}
	if len(env.replier.replies) != 0 {
		t.Errorf("sticker message produced a reply: %v", env.replier.replies)
	}
}

func TestCallback_RedeliveredEventSkipped(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	env := newTestEnv(t, dedup.New(client, time.Hour))

	body := webhookBody(imageMessageEvent("U1", "m-1", "rt-1", "evt-1"))
	if rec := env.post(t, testChannelSecret, body); rec.Code != http.StatusOK {
		t.Fatalf("first delivery status = %d", rec.Code)
	}
	if rec := env.post(t, testChannelSecret, body); rec.Code != http.StatusOK {
		t.Fatalf("redelivery status = %d", rec.Code)
	}

	if got := len(env.allSlips(t)); got != 1 {
		t.Errorf("expected 1 record after redelivery, got %d", got)
	}
}

func TestCallback_ProcessingFailureReturns500(t *testing.T) {
	env := newTestEnv(t, nil)
	env.extractor.err = errors.New("tesseract broke")

	rec := env.post(t, testChannelSecret, webhookBody(imageMessageEvent("U1", "m-1", "rt-1", "evt-1")))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if len(env.allSlips(t)) != 0 {
		t.Errorf("expected no record when processing fails")
	}
	if len(env.replier.replies) != 0 {
		t.Errorf("expected no reply when processing fails, got %v", env.replier.replies)
	}
}

func TestListSlips_JSON(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, event := range []string{
		imageMessageEvent("U1", "m-1", "rt-1", "evt-1"),
		imageMessageEvent("U2", "m-2", "rt-2", "evt-2"),
		imageMessageEvent("U1", "m-3", "rt-3", "evt-3"),
	} {
		if rec := env.post(t, testChannelSecret, webhookBody(event)); rec.Code != http.StatusOK {
			t.Fatalf("setup event failed with status %d", rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/slips", nil)
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var records []database.SlipRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i-1].ID <= records[i].ID {
			t.Errorf("records not in descending id order")
		}
	}

	// Sender filter
	req = httptest.NewRequest(http.MethodGet, "/api/v1/slips?senderId=U1", nil)
	rec = httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records for U1, got %d", len(records))
	}

	// Limit
	req = httptest.NewRequest(http.MethodGet, "/api/v1/slips?limit=1", nil)
	rec = httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record with limit=1, got %d", len(records))
	}
}

func TestListSlips_NegativeLimitRejected(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/slips?limit=-1", nil)
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestProbe(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
