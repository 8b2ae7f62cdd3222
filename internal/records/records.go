// Package records decides create-vs-amend for persisted submissions.
//
// One logical record per user submission lives in the feedback table. It is
// created when the survey completes and may later be amended with contact
// details or a free comment; an amendment that finds no prior row falls back
// to creating a sparse one, so no amendment is ever silently dropped.
package records

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/rentagg/feedbot/internal/models"
	"github.com/rentagg/feedbot/internal/sheet"
)

// Table names in the row store.
const (
	// FeedbackTable holds survey submissions and their amendments.
	FeedbackTable = "feedback"
	// LanguageTable holds durable language preferences.
	LanguageTable = "language"
)

// Column names of the feedback table.
const (
	ColTimestamp    = "timestamp"
	ColSubmissionID = "submission_id"
	ColUserID       = "user_id"
	ColUsername     = "username"
	ColFullName     = "full_name"
	ColCompany      = "company"
	ColQ1           = "q1_time_to_setup"
	ColQ2           = "q2_statuses_score"
	ColQ3           = "q3_what_inconvenient"
	ColQ4           = "q4_missing_features"
	ColQ5           = "q5_nps_recommend"
	ColContactName  = "contact_name"
	ColContactPhone = "contact_phone"
	ColContact      = "contact_handle"
	ColContactEmail = "contact_email"
	ColComment      = "comment"
	ColRawJSON      = "raw_json"
)

// Column names of the language table.
const (
	ColLocale    = "locale"
	ColUpdatedAt = "updated_at"
)

// FeedbackHeader is the canonical feedback table header, written when the
// table is first accessed empty. Addressing always goes through the header
// actually present in the store.
var FeedbackHeader = []string{
	ColTimestamp, ColSubmissionID, ColUserID, ColUsername, ColFullName,
	ColCompany, ColQ1, ColQ2, ColQ3, ColQ4, ColQ5,
	ColContactName, ColContactPhone, ColContact, ColContactEmail,
	ColComment, ColRawJSON,
}

// LanguageHeader is the canonical language table header.
var LanguageHeader = []string{ColUserID, ColLocale, ColUpdatedAt}

// Coordinator routes submissions to the row store, deciding between
// appending a new row and amending the most recent existing one.
type Coordinator struct {
	adapter *sheet.Adapter
	now     func() time.Time
}

// NewCoordinator creates a coordinator and registers the canonical table
// headers with the adapter.
func NewCoordinator(adapter *sheet.Adapter) *Coordinator {
	adapter.Register(FeedbackTable, FeedbackHeader)
	adapter.Register(LanguageTable, LanguageHeader)
	return &Coordinator{adapter: adapter, now: time.Now}
}

// Create appends a new feedback row for the identity with the given
// column-named answer values. Returns pass/fail.
func (c *Coordinator) Create(ctx context.Context, id models.Identity, answers map[string]string) bool {
	values := make(map[string]string, len(answers)+6)
	for k, v := range answers {
		values[k] = v
	}
	values[ColTimestamp] = c.now().Format(time.RFC3339)
	values[ColUserID] = id.Key()
	values[ColUsername] = id.Username
	values[ColFullName] = id.FullName
	if _, ok := values[ColRawJSON]; !ok {
		if raw, err := json.Marshal(answers); err == nil {
			values[ColRawJSON] = string(raw)
		}
	}

	ok := c.adapter.AppendRow(ctx, FeedbackTable, values)
	if ok {
		slog.Info("Coordinator created feedback row", "userID", id.ID)
	} else {
		slog.Error("Coordinator failed to create feedback row", "userID", id.ID)
	}
	return ok
}

// Amend updates only the patch columns of the user's most recent feedback
// row. When no row exists, it falls back to Create with the patch as the
// only populated columns, guaranteeing the amendment is never dropped.
// Individual cell failures are non-fatal: they are logged and the remaining
// cells still written.
func (c *Coordinator) Amend(ctx context.Context, id models.Identity, patch map[string]string) bool {
	row, found := c.adapter.FindLatestRowForKey(ctx, FeedbackTable, ColUserID, id.Key())
	if !found {
		slog.Info("Coordinator amend target missing, creating sparse row", "userID", id.ID)
		return c.Create(ctx, id, patch)
	}

	for column, value := range patch {
		if err := c.adapter.UpdateCell(ctx, FeedbackTable, row, column, value); err != nil {
			slog.Warn("Coordinator amend cell failed", "error", err, "userID", id.ID, "row", row, "column", column)
		}
	}
	slog.Info("Coordinator amended feedback row", "userID", id.ID, "row", row, "columns", len(patch))
	return true
}

// AllRows returns every feedback row for reporting.
func (c *Coordinator) AllRows(ctx context.Context) ([]map[string]string, error) {
	return c.adapter.ReadAllRows(ctx, FeedbackTable)
}

// SaveLocale upserts the user's durable language preference. Implements
// session.LanguagePersister.
func (c *Coordinator) SaveLocale(ctx context.Context, userID int64, loc models.Locale) bool {
	key := models.Identity{ID: userID}.Key()
	now := c.now().Format(time.RFC3339)

	row, found := c.adapter.FindLatestRowForKey(ctx, LanguageTable, ColUserID, key)
	if found {
		if err := c.adapter.UpdateCell(ctx, LanguageTable, row, ColLocale, string(loc)); err != nil {
			slog.Warn("Coordinator SaveLocale update failed", "error", err, "userID", userID)
			return false
		}
		if err := c.adapter.UpdateCell(ctx, LanguageTable, row, ColUpdatedAt, now); err != nil {
			slog.Warn("Coordinator SaveLocale timestamp update failed", "error", err, "userID", userID)
		}
		return true
	}
	return c.adapter.AppendRow(ctx, LanguageTable, map[string]string{
		ColUserID:    key,
		ColLocale:    string(loc),
		ColUpdatedAt: now,
	})
}

// LoadLocale reads the user's durable language preference. Implements
// session.LanguagePersister.
func (c *Coordinator) LoadLocale(ctx context.Context, userID int64) (models.Locale, bool) {
	key := models.Identity{ID: userID}.Key()
	rows, err := c.adapter.ReadAllRows(ctx, LanguageTable)
	if err != nil {
		slog.Warn("Coordinator LoadLocale read failed", "error", err, "userID", userID)
		return "", false
	}
	// Last matching row wins, mirroring SaveLocale's latest-row update.
	var loc models.Locale
	found := false
	for _, rec := range rows {
		if rec[ColUserID] != key {
			continue
		}
		if parsed, err := models.ParseLocale(rec[ColLocale]); err == nil {
			loc = parsed
			found = true
		}
	}
	return loc, found
}
