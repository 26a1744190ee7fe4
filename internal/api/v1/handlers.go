// Package apiv1 is the JSON surface over the processing, credit and
// subscription services. Request authentication happens upstream; handlers
// trust the user id the gateway injects.
package apiv1

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/pixelmint/pixelmint/internal/pkg/credits"
	"github.com/pixelmint/pixelmint/internal/pkg/entitlements"
	"github.com/pixelmint/pixelmint/internal/pkg/imageprocessor"
	"github.com/pixelmint/pixelmint/internal/pkg/payment"
	"github.com/pixelmint/pixelmint/internal/pkg/processing"
	"github.com/pixelmint/pixelmint/internal/pkg/subscription"
)

// UserIDHeader carries the authenticated user id set by the gateway.
const UserIDHeader = "X-User-ID"

type Server struct {
	orch          *processing.Orchestrator
	credits       *credits.Service
	subs          *subscription.Service
	payments      *payment.Service
	webhookSecret string
}

func NewServer(orch *processing.Orchestrator, creditSvc *credits.Service, subs *subscription.Service, payments *payment.Service, webhookSecret string) *Server {
	return &Server{
		orch:          orch,
		credits:       creditSvc,
		subs:          subs,
		payments:      payments,
		webhookSecret: webhookSecret,
	}
}

// GetPing handles the ping endpoint
func (s *Server) GetPing(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ping": "pong"})
}

// PostProcess accepts a multipart batch: one or more files under "images"
// plus an optional "options" JSON field applied to every image.
func (s *Server) PostProcess(c *fiber.Ctx) error {
	userID, ok := requestUserID(c)
	if !ok {
		return nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return badRequest(c, "multipart form expected")
	}
	files := form.File["images"]
	if len(files) == 0 {
		return badRequest(c, "no images supplied")
	}

	var job imageprocessor.Job
	if raw := c.FormValue("options"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			return badRequest(c, "options is not valid JSON")
		}
	}
	if job.JobType == "" {
		job.JobType = imageprocessor.JobTypeCompress
	}

	batch := make([]processing.ImageInput, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return badRequest(c, fmt.Sprintf("cannot read %s", fh.Filename))
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return badRequest(c, fmt.Sprintf("cannot read %s", fh.Filename))
		}
		batch = append(batch, processing.ImageInput{
			FileName: fh.Filename,
			Data:     data,
			Job:      job,
		})
	}

	results, err := s.orch.ProcessBatch(c.Context(), userID, batch)
	if err != nil {
		switch {
		case errors.Is(err, entitlements.ErrDenied):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "entitlement_denied", "message": err.Error()})
		case errors.Is(err, credits.ErrInsufficientCredits):
			return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": "insufficient_credits", "message": err.Error()})
		default:
			log.Errorf("[API] process batch failed: %v", err)
			return internalError(c)
		}
	}

	out := make([]fiber.Map, len(results))
	for i, r := range results {
		entry := fiber.Map{
			"file_name": r.FileName,
			"job_id":    r.JobID,
		}
		if r.Err != nil {
			entry["error"] = r.Err.Error()
		} else {
			entry["key"] = r.Key
			entry["url"] = r.URL
			entry["format"] = r.Format
			entry["byte_size"] = r.ByteSize
			entry["alt_text"] = r.AltText
		}
		out[i] = entry
	}
	return c.JSON(fiber.Map{"results": out})
}

// GetJobStatus returns the processing status for a job id.
func (s *Server) GetJobStatus(c *fiber.Ctx) error {
	jobID := c.Params("id")
	if jobID == "" {
		return badRequest(c, "job id missing")
	}
	status, err := imageprocessor.GetJobStatus(jobID)
	if err != nil {
		status = ""
	}
	return c.JSON(fiber.Map{
		"job_id":   jobID,
		"status":   status,
		"finished": imageprocessor.IsJobFinished(jobID),
	})
}

// GetBalance reports the caller's current credit balance.
func (s *Server) GetBalance(c *fiber.Ctx) error {
	userID, ok := requestUserID(c)
	if !ok {
		return nil
	}
	balance, err := s.credits.GetBalance(c.Context(), userID)
	if err != nil {
		log.Errorf("[API] balance lookup failed: %v", err)
		return internalError(c)
	}
	return c.JSON(fiber.Map{"balance": balance})
}

// GetTransactions pages through the caller's credit ledger.
func (s *Server) GetTransactions(c *fiber.Ctx) error {
	userID, ok := requestUserID(c)
	if !ok {
		return nil
	}
	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)

	txs, err := s.credits.ListTransactions(c.Context(), userID, limit, offset)
	if err != nil {
		log.Errorf("[API] transaction list failed: %v", err)
		return internalError(c)
	}
	return c.JSON(fiber.Map{"transactions": txs})
}

// GetHistory lists recent processing activity.
func (s *Server) GetHistory(c *fiber.Ctx) error {
	userID, ok := requestUserID(c)
	if !ok {
		return nil
	}
	records, err := s.orch.History(c.Context(), userID, c.QueryInt("limit", 50))
	if err != nil {
		log.Errorf("[API] history lookup failed: %v", err)
		return internalError(c)
	}
	return c.JSON(fiber.Map{"history": records})
}

// GetSubscription returns the caller's active subscription, if any.
func (s *Server) GetSubscription(c *fiber.Ctx) error {
	userID, ok := requestUserID(c)
	if !ok {
		return nil
	}
	sub, err := s.subs.GetActiveSubscription(c.Context(), userID)
	if err != nil {
		log.Errorf("[API] subscription lookup failed: %v", err)
		return internalError(c)
	}
	if sub == nil {
		return c.JSON(fiber.Map{"subscription": nil, "tier": string(entitlements.TierFree)})
	}
	days, _ := s.subs.DaysRemaining(c.Context(), userID)
	return c.JSON(fiber.Map{
		"subscription":   sub,
		"tier":           sub.Plan.Tier,
		"days_remaining": days,
	})
}

// PostSubscriptionCancel cancels the caller's active subscription. The paid
// period keeps running until its end.
func (s *Server) PostSubscriptionCancel(c *fiber.Ctx) error {
	userID, ok := requestUserID(c)
	if !ok {
		return nil
	}
	active, err := s.subs.GetActiveSubscription(c.Context(), userID)
	if err != nil {
		log.Errorf("[API] subscription lookup failed: %v", err)
		return internalError(c)
	}
	if active == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "no active subscription"})
	}
	sub, err := s.subs.Cancel(c.Context(), active.ID, userID)
	if err != nil {
		if errors.Is(err, subscription.ErrSubscriptionNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "no active subscription"})
		}
		log.Errorf("[API] cancel failed: %v", err)
		return internalError(c)
	}
	return c.JSON(fiber.Map{"subscription": sub})
}

// PostWebhook ingests payment-processor deliveries. Every payload is stored
// first; handling errors are recorded on the stored event so deliveries can
// be replayed safely.
func (s *Server) PostWebhook(c *fiber.Ctx) error {
	body := c.Body()
	valid := payment.VerifyWebhookSignature(body, c.Get("X-Webhook-Signature"), s.webhookSecret)
	if !valid {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}

	created, event, err := s.payments.RecordEvent(c.Context(), payment.WebhookEventInput{
		Provider:        c.Get("X-Webhook-Provider", "default"),
		ProviderEventID: c.Get("X-Webhook-Event-ID"),
		EventType:       "",
		PayloadJSON:     string(body),
		SignatureValid:  valid,
	})
	if err != nil {
		log.Errorf("[API] webhook store failed: %v", err)
		return internalError(c)
	}
	if !created {
		// Exact replay of a processed delivery; acknowledge without
		// reprocessing.
		return c.JSON(fiber.Map{"status": "duplicate"})
	}

	handleErr := s.handleWebhookEvent(c, body)
	if err := s.payments.MarkProcessed(c.Context(), event.ID, handleErr); err != nil {
		log.Errorf("[API] webhook mark-processed failed: %v", err)
	}
	if handleErr != nil {
		if errors.Is(handleErr, payment.ErrMalformedEvent) {
			return badRequest(c, handleErr.Error())
		}
		log.Errorf("[API] webhook handling failed: %v", handleErr)
		return internalError(c)
	}
	return c.JSON(fiber.Map{"status": "processed"})
}

func (s *Server) handleWebhookEvent(c *fiber.Ctx, body []byte) error {
	ev, err := payment.ParseEvent(body)
	if err != nil {
		return err
	}

	ctx := c.Context()
	switch ev.Type {
	case payment.EventSubscriptionCreated:
		_, err = s.subs.Activate(ctx, subscription.ActivateInput{
			UserID:      ev.UserID,
			PlanID:      ev.PlanID,
			ExternalRef: ev.ExternalSubscriptionRef,
			PaymentRef:  ev.ExternalPaymentRef,
		})
		return err
	case payment.EventSubscriptionRenewed, payment.EventPaymentSucceeded:
		periodEnd := timeOrZero(ev)
		_, err = s.subs.Renew(ctx, ev.ExternalSubscriptionRef, ev.UserID, ev.PlanID, ev.ExternalPaymentRef, periodEnd)
		return err
	case payment.EventSubscriptionCancelled:
		active, err := s.subs.GetActiveSubscription(ctx, ev.UserID)
		if err != nil {
			return err
		}
		if active == nil {
			return nil // nothing to cancel
		}
		_, err = s.subs.Cancel(ctx, active.ID, ev.UserID)
		if errors.Is(err, subscription.ErrSubscriptionNotFound) {
			return nil // already cancelled
		}
		return err
	default:
		return fmt.Errorf("%w: unknown type %q", payment.ErrMalformedEvent, ev.Type)
	}
}

// requestUserID reads the gateway-injected user id header. On failure it
// writes the 401 response itself and reports false; the handler returns nil
// without writing anything further.
func requestUserID(c *fiber.Ctx) (uint, bool) {
	raw := c.Get(UserIDHeader)
	id, err := strconv.ParseUint(raw, 10, 32)
	if raw == "" || err != nil || id == 0 {
		_ = c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthenticated"})
		return 0, false
	}
	return uint(id), true
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": msg})
}

func internalError(c *fiber.Ctx) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_error"})
}
