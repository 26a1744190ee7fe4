// Package processing drives whole jobs end to end: entitlement checks,
// credit pre-check, pipeline execution, object persistence, the credit
// debit and the audit trail.
package processing

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/pixelmint/pixelmint/app/models"
	"github.com/pixelmint/pixelmint/internal/pkg/aiassist"
	"github.com/pixelmint/pixelmint/internal/pkg/credits"
	"github.com/pixelmint/pixelmint/internal/pkg/entitlements"
	"github.com/pixelmint/pixelmint/internal/pkg/imageprocessor"
	"github.com/pixelmint/pixelmint/internal/pkg/storage"
)

// maxConcurrentImages bounds the fan-out per batch.
const maxConcurrentImages = 4

// TierResolver yields the entitlement tier for a user.
type TierResolver interface {
	ResolveTier(ctx context.Context, userID uint) (string, error)
}

// ImageInput is one image of a batch with its processing options.
type ImageInput struct {
	FileName string
	Data     []byte
	Job      imageprocessor.Job
}

// ImageResult reports the outcome for one image. Err is set when this
// image failed; the rest of the batch is unaffected.
type ImageResult struct {
	FileName string
	JobID    string
	Key      string
	URL      string
	Format   string
	ByteSize int64
	AltText  string
	Err      error
}

type Orchestrator struct {
	db      *gorm.DB
	credits *credits.Service
	tiers   TierResolver
	engine  *imageprocessor.Engine
	store   storage.ObjectStore
}

func NewOrchestrator(db *gorm.DB, creditSvc *credits.Service, tiers TierResolver, engine *imageprocessor.Engine, store storage.ObjectStore) *Orchestrator {
	return &Orchestrator{
		db:      db,
		credits: creditSvc,
		tiers:   tiers,
		engine:  engine,
		store:   store,
	}
}

// ProcessBatch validates the whole batch up front and then processes the
// images concurrently. Entitlement failures and an insufficient balance
// reject the batch before any work; after that point each image succeeds
// or fails on its own.
func (o *Orchestrator) ProcessBatch(ctx context.Context, userID uint, images []ImageInput) ([]ImageResult, error) {
	if len(images) == 0 {
		return nil, nil
	}

	tierName, err := o.tiers.ResolveTier(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve tier: %w", err)
	}
	tier := entitlements.NormalizeTier(tierName)

	if len(images) > 1 && !entitlements.IsStageAllowed(tier, entitlements.StageBatch) {
		return nil, fmt.Errorf("batch processing requires the %s tier: %w",
			entitlements.StageMinTier(entitlements.StageBatch), entitlements.ErrDenied)
	}

	for i := range images {
		if err := o.checkEntitlements(tier, &images[i]); err != nil {
			return nil, err
		}
	}

	// Balance pre-check. Each image costs one credit; a batch the user
	// cannot fully afford is rejected before any image is processed.
	balance, err := o.credits.GetBalance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("balance pre-check: %w", err)
	}
	if balance < int64(len(images)) {
		return nil, fmt.Errorf("batch of %d needs %d credits, have %d: %w",
			len(images), len(images), balance, credits.ErrInsufficientCredits)
	}

	results := make([]ImageResult, len(images))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentImages)
	for i := range images {
		i := i
		g.Go(func() error {
			results[i] = o.processOne(gctx, userID, tier, &images[i])
			return nil
		})
	}
	_ = g.Wait() // workers report through results, never an error
	return results, nil
}

// checkEntitlements verifies the tier covers the file size and every
// requested stage. Quality capping happens later; it is a silent clamp,
// not a rejection.
func (o *Orchestrator) checkEntitlements(tier entitlements.Tier, in *ImageInput) error {
	if !entitlements.CapFileSize(tier, int64(len(in.Data))) {
		return fmt.Errorf("%s: file size %d exceeds the %s tier limit: %w",
			in.FileName, len(in.Data), tier, entitlements.ErrDenied)
	}
	for _, stage := range stagesFor(&in.Job) {
		if !entitlements.IsStageAllowed(tier, stage) {
			return fmt.Errorf("%s: stage %s requires the %s tier: %w",
				in.FileName, stage, entitlements.StageMinTier(stage), entitlements.ErrDenied)
		}
	}
	return nil
}

func (o *Orchestrator) processOne(ctx context.Context, userID uint, tier entitlements.Tier, in *ImageInput) ImageResult {
	jobID := uuid.New().String()
	res := ImageResult{FileName: in.FileName, JobID: jobID}

	job := in.Job
	job.ID = jobID
	job.UserID = userID
	job.Data = in.Data
	job.Quality = entitlements.CapQuality(tier, job.Quality)

	imageprocessor.SetJobStatus(jobID, imageprocessor.STATUS_PROCESSING)

	out, err := o.engine.Process(ctx, &job)
	if err != nil {
		imageprocessor.SetJobStatus(jobID, imageprocessor.STATUS_FAILED)
		log.Errorf("[Processing] job %s failed: %v", jobID, err)
		res.Err = err
		return res
	}

	out.AltText = aiassist.GenerateAltText(in.FileName, string(out.Format), out.ByteSize)

	key := storage.NewObjectKey(userID, string(out.Format))
	if err := o.store.Put(ctx, key, out.Data, storage.ContentTypeFor(string(out.Format))); err != nil {
		imageprocessor.SetJobStatus(jobID, imageprocessor.STATUS_FAILED)
		res.Err = fmt.Errorf("persist output: %w", err)
		return res
	}

	if _, err := o.credits.DeductCredits(ctx, userID, 1, "image processing", &jobID); err != nil {
		// The object is already persisted; remove it so a failed debit
		// leaves nothing behind.
		o.store.Delete(ctx, key)
		imageprocessor.SetJobStatus(jobID, imageprocessor.STATUS_FAILED)
		res.Err = err
		return res
	}

	record := &models.ActivityRecord{
		UserID:       userID,
		StageLabel:   in.Job.JobType,
		OutputFormat: string(out.Format),
		OutputKey:    key,
		OriginalSize: int64(len(in.Data)),
		OutputSize:   out.ByteSize,
		CreditsUsed:  1,
		AltText:      out.AltText,
	}
	if err := o.db.WithContext(ctx).Create(record).Error; err != nil {
		log.Errorf("[Processing] job %s: activity record not written: %v", jobID, err)
	}

	url, err := o.store.SignedURL(ctx, key, false)
	if err != nil {
		log.Errorf("[Processing] job %s: signed url failed: %v", jobID, err)
	}

	imageprocessor.SetJobStatus(jobID, imageprocessor.STATUS_COMPLETED)
	res.Key = key
	res.URL = url
	res.Format = string(out.Format)
	res.ByteSize = out.ByteSize
	res.AltText = out.AltText
	return res
}

// stagesFor lists the entitlement stages a job touches.
func stagesFor(job *imageprocessor.Job) []string {
	stages := make([]string, 0, 6)
	switch job.JobType {
	case imageprocessor.JobTypeConvert:
		stages = append(stages, entitlements.StageConvert)
	default:
		stages = append(stages, entitlements.StageCompress)
	}
	if job.Crop != nil {
		stages = append(stages, entitlements.StageCrop)
	}
	if job.Upscale {
		stages = append(stages, entitlements.StageUpscale)
	}
	if job.Resize != nil {
		stages = append(stages, entitlements.StageResize)
	}
	if job.RemoveBackground {
		stages = append(stages, entitlements.StageRemoveBg)
	}
	if job.Watermark != nil {
		stages = append(stages, entitlements.StageWatermark)
	}
	return stages
}

// SuggestQuality recommends a compression quality for an uploaded file,
// clamped to what the tier allows.
func (o *Orchestrator) SuggestQuality(ctx context.Context, userID uint, byteSize int64) (int, error) {
	tierName, err := o.tiers.ResolveTier(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("resolve tier: %w", err)
	}
	tier := entitlements.NormalizeTier(tierName)
	return entitlements.CapQuality(tier, aiassist.SuggestCompression(byteSize)), nil
}

// History lists a user's most recent processing activity.
func (o *Orchestrator) History(ctx context.Context, userID uint, limit int) ([]models.ActivityRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var records []models.ActivityRecord
	err := o.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}
