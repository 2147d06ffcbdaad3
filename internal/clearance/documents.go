package clearance

import (
	"context"
	"errors"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/joseph-ayodele/vehicle-clearance/constants"
	"github.com/joseph-ayodele/vehicle-clearance/internal/common"
	"github.com/joseph-ayodele/vehicle-clearance/internal/entity"
	"github.com/joseph-ayodele/vehicle-clearance/internal/resilience"
)

// RegistrationKind decides which documents the HPG track accepts.
type RegistrationKind string

const (
	KindNew      RegistrationKind = "new"
	KindTransfer RegistrationKind = "transfer"
)

// Where the documents for a submission were found.
const (
	SourceVehicle = "vehicle"
	SourceWindow  = "window"
	SourceNone    = "none"
)

var errNoDocuments = errors.New("no documents linked to vehicle yet")

// ClassifyRegistration reads registration_type, origin_type and purpose in
// that order; anything mentioning a transfer is a transfer, the rest is new.
func ClassifyRegistration(v *entity.Vehicle) RegistrationKind {
	for _, s := range []string{v.RegistrationType, v.OriginType, v.Purpose} {
		s = strings.ToLower(s)
		if strings.Contains(s, "transfer") || strings.Contains(s, "second hand") {
			return KindTransfer
		}
		if s != "" && (strings.Contains(s, "new") || strings.Contains(s, "brand")) {
			return KindNew
		}
	}
	return KindNew
}

// waitForDocuments polls for the vehicle's documents on the configured
// backoff, then falls back to documents uploaded around the vehicle's
// creation that are unlinked or already linked to it.
func (o *Orchestrator) waitForDocuments(ctx context.Context, v *entity.Vehicle) ([]*entity.Document, string, error) {
	b := o.cfg.Wait
	b.Retryable = func(err error) bool { return errors.Is(err, errNoDocuments) }
	b.OnRetry = func(attempt int, delay time.Duration, _ error) {
		o.logger.Debug("clearance.documents.waiting", "vehicle_id", v.ID, "attempt", attempt, "delay_ms", delay.Milliseconds())
	}

	docs, err := resilience.RetryValue(ctx, b, func(ctx context.Context) ([]*entity.Document, error) {
		docs, err := o.repos.Documents.ListByVehicle(ctx, v.ID)
		if err != nil {
			return nil, err
		}
		if len(docs) == 0 {
			return nil, errNoDocuments
		}
		return docs, nil
	})
	switch {
	case err == nil:
		return docs, SourceVehicle, nil
	case !errors.Is(err, errNoDocuments):
		return nil, SourceNone, common.WrapError(err, "list vehicle documents")
	case ctx.Err() != nil:
		return nil, SourceNone, ctx.Err()
	}

	from, to := v.CreatedAt.Add(-o.cfg.FallbackWindow), v.CreatedAt.Add(o.cfg.FallbackWindow)
	docs, err = o.repos.Documents.ListUploadedBetween(ctx, from, to, v.ID)
	if err != nil {
		return nil, SourceNone, common.WrapError(err, "list documents in upload window")
	}
	if len(docs) == 0 {
		o.logger.Warn("clearance.documents.none", "vehicle_id", v.ID)
		return nil, SourceNone, nil
	}
	o.logger.Info("clearance.documents.window_fallback", "vehicle_id", v.ID, "count", len(docs))
	for _, d := range docs {
		if d.VehicleID != nil {
			continue
		}
		if err := o.repos.Documents.LinkVehicle(ctx, d.ID, v.ID); err != nil {
			o.logger.Warn("clearance.documents.link_failed", "vehicle_id", v.ID, "document_id", d.ID, "err", err)
			continue
		}
		id := v.ID
		d.VehicleID = &id
	}
	return docs, SourceWindow, nil
}

// plan is what the uploaded documents allow for one submission.
type plan struct {
	kind      RegistrationKind
	types     mapset.Set[constants.DocumentType]
	hpgDocs   []*entity.Document
	orcr      *entity.Document
	insurance *entity.Document
}

func newPlan(v *entity.Vehicle, docs []*entity.Document) plan {
	p := plan{kind: ClassifyRegistration(v), types: mapset.NewSet[constants.DocumentType]()}
	for _, d := range docs {
		t := documentType(d)
		p.types.Add(t)
		switch t {
		case constants.DocOwnerID, constants.DocHPGClearance, constants.DocRegistrationCert:
			p.hpgDocs = append(p.hpgDocs, d)
			if t == constants.DocRegistrationCert && p.orcr == nil {
				p.orcr = d
			}
		case constants.DocInsuranceCert:
			if p.insurance == nil {
				p.insurance = d
			}
		}
	}
	return p
}

// documentType trusts an explicit tag; untagged uploads named like an
// insurance certificate count as one.
func documentType(d *entity.Document) constants.DocumentType {
	if t, ok := constants.CanonicalizeDocumentType(string(d.Type)); ok && t != constants.DocOther {
		return t
	}
	if strings.Contains(strings.ToLower(d.OriginalFilename), "insurance") ||
		strings.Contains(strings.ToLower(d.StoragePath), "insurance") {
		return constants.DocInsuranceCert
	}
	return constants.DocOther
}

// hpgRequired lists the document types any one of which opens the HPG track.
func (p plan) hpgRequired() []constants.DocumentType {
	if p.kind == KindTransfer {
		return []constants.DocumentType{constants.DocOwnerID, constants.DocRegistrationCert}
	}
	return []constants.DocumentType{constants.DocOwnerID, constants.DocHPGClearance}
}

func (p plan) needsHPG() bool {
	return p.types.ContainsAny(p.hpgRequired()...)
}

func (p plan) needsInsurance() bool {
	return p.insurance != nil
}
