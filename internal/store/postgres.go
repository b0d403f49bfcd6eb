package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/glowstack/studio-automation/internal/crypto"
	"github.com/glowstack/studio-automation/internal/model"
)

// PostgresStore is the production Store backed by a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects a pool with the same sizing the service has
// always run with.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}
	config.MaxConns = 20
	config.MinConns = 5
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const studioColumns = `id, slug, api_key, name, owner_name, encrypted_email, email_nonce,
	brand_voice, deposit_amount, late_fee, cancel_window_hours, booking_url, vibe_threshold, created_at`

func (s *PostgresStore) CreateStudio(ctx context.Context, studio *model.Studio) error {
	studio.ID = uuid.New()
	studio.CreatedAt = time.Now().UTC()
	if studio.APIKey == "" {
		studio.APIKey = NewAPIKey()
	}
	if studio.BrandVoice == "" {
		studio.BrandVoice = model.VoiceProfessionalChill
	}

	slug := Slugify(studio.Name)
	var taken bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM studios WHERE slug = $1)`, slug).Scan(&taken)
	if err != nil {
		return err
	}
	if taken {
		slug = slug + "-" + slugSuffix()
	}
	studio.Slug = slug

	if studio.ContactEmail != "" {
		encrypted, nonce, err := crypto.Encrypt(studio.ContactEmail)
		if err != nil {
			return err
		}
		studio.EncryptedEmail = encrypted
		studio.EmailNonce = nonce
	}

	query := `INSERT INTO studios (` + studioColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err = s.pool.Exec(ctx, query,
		studio.ID, studio.Slug, studio.APIKey, studio.Name, studio.OwnerName,
		studio.EncryptedEmail, studio.EmailNonce, studio.BrandVoice,
		studio.DepositAmount, studio.LateFee, studio.CancelWindowHours,
		studio.BookingURL, studio.VibeThreshold, studio.CreatedAt)
	return err
}

func (s *PostgresStore) UpdateStudio(ctx context.Context, studio *model.Studio) error {
	if studio.ContactEmail != "" {
		encrypted, nonce, err := crypto.Encrypt(studio.ContactEmail)
		if err != nil {
			return err
		}
		studio.EncryptedEmail = encrypted
		studio.EmailNonce = nonce
	}
	query := `UPDATE studios SET name = $2, owner_name = $3, encrypted_email = $4, email_nonce = $5,
	          brand_voice = $6, deposit_amount = $7, late_fee = $8, cancel_window_hours = $9,
	          booking_url = $10, vibe_threshold = $11
	          WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query,
		studio.ID, studio.Name, studio.OwnerName, studio.EncryptedEmail, studio.EmailNonce,
		studio.BrandVoice, studio.DepositAmount, studio.LateFee, studio.CancelWindowHours,
		studio.BookingURL, studio.VibeThreshold)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStudioNotFound
	}
	return nil
}

func (s *PostgresStore) studioBy(ctx context.Context, where string, arg any) (*model.Studio, error) {
	query := `SELECT ` + studioColumns + ` FROM studios WHERE ` + where
	studio := &model.Studio{}
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&studio.ID, &studio.Slug, &studio.APIKey, &studio.Name, &studio.OwnerName,
		&studio.EncryptedEmail, &studio.EmailNonce, &studio.BrandVoice,
		&studio.DepositAmount, &studio.LateFee, &studio.CancelWindowHours,
		&studio.BookingURL, &studio.VibeThreshold, &studio.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrStudioNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(studio.EncryptedEmail) > 0 && len(studio.EmailNonce) > 0 {
		email, err := crypto.Decrypt(studio.EncryptedEmail, studio.EmailNonce)
		if err != nil {
			return nil, err
		}
		studio.ContactEmail = email
	}
	return studio, nil
}

func (s *PostgresStore) StudioByID(ctx context.Context, id uuid.UUID) (*model.Studio, error) {
	return s.studioBy(ctx, "id = $1", id)
}

func (s *PostgresStore) StudioBySlug(ctx context.Context, slug string) (*model.Studio, error) {
	return s.studioBy(ctx, "slug = $1", slug)
}

func (s *PostgresStore) StudioByAPIKey(ctx context.Context, apiKey string) (*model.Studio, error) {
	return s.studioBy(ctx, "api_key = $1", apiKey)
}

func (s *PostgresStore) ListStudios(ctx context.Context) ([]model.Studio, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, slug, name, brand_voice, deposit_amount, late_fee,
		cancel_window_hours, booking_url, vibe_threshold, created_at FROM studios ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var studios []model.Studio
	for rows.Next() {
		var st model.Studio
		if err := rows.Scan(&st.ID, &st.Slug, &st.Name, &st.BrandVoice, &st.DepositAmount,
			&st.LateFee, &st.CancelWindowHours, &st.BookingURL, &st.VibeThreshold, &st.CreatedAt); err != nil {
			return nil, err
		}
		studios = append(studios, st)
	}
	return studios, rows.Err()
}

func (s *PostgresStore) CreateService(ctx context.Context, svc *model.Service) error {
	svc.ID = uuid.New()
	svc.Active = true
	svc.CreatedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO services (id, studio_id, name, price, duration_min, active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		svc.ID, svc.StudioID, svc.Name, svc.Price, svc.DurationMin, svc.Active, svc.CreatedAt)
	return err
}

func (s *PostgresStore) CreateAddOn(ctx context.Context, addon *model.AddOn) error {
	addon.ID = uuid.New()
	addon.CreatedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO service_addons (id, service_id, studio_id, name, price, duration_min, pitch, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		addon.ID, addon.ServiceID, addon.StudioID, addon.Name, addon.Price,
		addon.DurationMin, addon.Pitch, addon.CreatedAt)
	return err
}

func (s *PostgresStore) ServicesForStudio(ctx context.Context, studioID uuid.UUID) ([]model.Service, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, studio_id, name, price, duration_min, active, created_at
		 FROM services WHERE studio_id = $1 AND active ORDER BY created_at`, studioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var services []model.Service
	for rows.Next() {
		var svc model.Service
		if err := rows.Scan(&svc.ID, &svc.StudioID, &svc.Name, &svc.Price,
			&svc.DurationMin, &svc.Active, &svc.CreatedAt); err != nil {
			return nil, err
		}
		services = append(services, svc)
	}
	return services, rows.Err()
}

func (s *PostgresStore) scanAddOns(rows pgx.Rows) ([]model.AddOn, error) {
	defer rows.Close()
	var addons []model.AddOn
	for rows.Next() {
		var a model.AddOn
		if err := rows.Scan(&a.ID, &a.ServiceID, &a.StudioID, &a.Name, &a.Price,
			&a.DurationMin, &a.Pitch, &a.CreatedAt); err != nil {
			return nil, err
		}
		addons = append(addons, a)
	}
	return addons, rows.Err()
}

func (s *PostgresStore) AddOnsForService(ctx context.Context, studioID, serviceID uuid.UUID) ([]model.AddOn, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, service_id, studio_id, name, price, duration_min, pitch, created_at
		 FROM service_addons WHERE studio_id = $1 AND service_id = $2 ORDER BY price DESC, created_at`,
		studioID, serviceID)
	if err != nil {
		return nil, err
	}
	return s.scanAddOns(rows)
}

func (s *PostgresStore) AddOnsForStudio(ctx context.Context, studioID uuid.UUID) ([]model.AddOn, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, service_id, studio_id, name, price, duration_min, pitch, created_at
		 FROM service_addons WHERE studio_id = $1 ORDER BY price DESC, created_at`, studioID)
	if err != nil {
		return nil, err
	}
	return s.scanAddOns(rows)
}

func (s *PostgresStore) LeadByID(ctx context.Context, studioID, id uuid.UUID) (*model.Lead, error) {
	lead := &model.Lead{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, studio_id, name, phone, instagram_handle, intake_status, vibe_score,
		        intake_reasoning, confirmation, version, created_at
		 FROM leads WHERE studio_id = $1 AND id = $2`, studioID, id).Scan(
		&lead.ID, &lead.StudioID, &lead.Name, &lead.Phone, &lead.Instagram,
		&lead.IntakeStatus, &lead.VibeScore, &lead.Reasoning, &lead.Confirmation,
		&lead.Version, &lead.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return lead, nil
}

// PendingLeadByContact finds the newest pending lead reachable at the same
// phone or handle. Webhook origins that time out and redeliver an inbound
// message resolve to this row instead of minting a duplicate.
func (s *PostgresStore) PendingLeadByContact(ctx context.Context, studioID uuid.UUID, phone, instagram string) (*model.Lead, error) {
	lead := &model.Lead{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, studio_id, name, phone, instagram_handle, intake_status, vibe_score,
		        intake_reasoning, confirmation, version, created_at
		 FROM leads
		 WHERE studio_id = $1 AND intake_status = 'pending'
		   AND ((phone <> '' AND phone = $2) OR (instagram_handle <> '' AND instagram_handle = $3))
		 ORDER BY created_at DESC LIMIT 1`, studioID, phone, instagram).Scan(
		&lead.ID, &lead.StudioID, &lead.Name, &lead.Phone, &lead.Instagram,
		&lead.IntakeStatus, &lead.VibeScore, &lead.Reasoning, &lead.Confirmation,
		&lead.Version, &lead.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return lead, nil
}

const bookingColumns = `id, studio_id, lead_id, service, add_ons, original_price, final_price,
	scheduled_at, status, source, created_at`

func scanBooking(row pgx.Row) (*model.Booking, error) {
	b := &model.Booking{}
	var addOns []byte
	err := row.Scan(&b.ID, &b.StudioID, &b.LeadID, &b.Service, &addOns,
		&b.OriginalPrice, &b.FinalPrice, &b.ScheduledAt, &b.Status, &b.Source, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(addOns) > 0 {
		if err := json.Unmarshal(addOns, &b.AddOns); err != nil {
			return nil, fmt.Errorf("decode add_ons: %w", err)
		}
	}
	return b, nil
}

func (s *PostgresStore) BookingByID(ctx context.Context, studioID, id uuid.UUID) (*model.Booking, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE studio_id = $1 AND id = $2`, studioID, id)
	return scanBooking(row)
}

func (s *PostgresStore) UpsellCandidates(ctx context.Context, studioID uuid.UUID, now time.Time, window time.Duration) ([]model.Booking, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+bookingColumns+` FROM bookings b
		 WHERE b.studio_id = $1 AND b.status = 'confirmed'
		   AND b.scheduled_at BETWEEN $2 AND $3
		   AND NOT EXISTS (
		       SELECT 1 FROM agent_events e
		       WHERE e.studio_id = b.studio_id
		         AND e.action = 'upsell_sent'
		         AND e.metadata->>'booking_id' = b.id::text)
		 ORDER BY b.scheduled_at`,
		studioID, now, now.Add(window))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func (s *PostgresStore) AddWaitlistEntry(ctx context.Context, entry *model.WaitlistEntry) error {
	entry.ID = uuid.New()
	entry.CreatedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO waitlist (id, studio_id, lead_id, service, preferred_at, notified, consumed, created_at)
		 VALUES ($1, $2, $3, $4, $5, false, false, $6)`,
		entry.ID, entry.StudioID, entry.LeadID, entry.Service, entry.PreferredAt, entry.CreatedAt)
	return err
}

func (s *PostgresStore) WaitlistEntryByID(ctx context.Context, studioID, id uuid.UUID) (*model.WaitlistEntry, error) {
	entry := &model.WaitlistEntry{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, studio_id, lead_id, service, preferred_at, notified, consumed, created_at
		 FROM waitlist WHERE studio_id = $1 AND id = $2`, studioID, id).Scan(
		&entry.ID, &entry.StudioID, &entry.LeadID, &entry.Service,
		&entry.PreferredAt, &entry.Notified, &entry.Consumed, &entry.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *PostgresStore) PendingWaitlist(ctx context.Context, studioID uuid.UUID, service string) ([]model.WaitlistEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, studio_id, lead_id, service, preferred_at, notified, consumed, created_at
		 FROM waitlist
		 WHERE studio_id = $1 AND service = $2 AND NOT notified AND NOT consumed
		 ORDER BY preferred_at, created_at`, studioID, service)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.WaitlistEntry
	for rows.Next() {
		var e model.WaitlistEntry
		if err := rows.Scan(&e.ID, &e.StudioID, &e.LeadID, &e.Service,
			&e.PreferredAt, &e.Notified, &e.Consumed, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) AppendEvent(ctx context.Context, event *model.AgentEvent) error {
	return appendEventTx(ctx, s.pool, event)
}

func (s *PostgresStore) RecentEvents(ctx context.Context, studioID uuid.UUID, limit int) ([]model.AgentEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, studio_id, agent, action, metadata, created_at
		 FROM agent_events WHERE studio_id = $1 ORDER BY created_at DESC LIMIT $2`,
		studioID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.AgentEvent
	for rows.Next() {
		var e model.AgentEvent
		var meta []byte
		if err := rows.Scan(&e.ID, &e.StudioID, &e.Agent, &e.Action, &meta, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, fmt.Errorf("decode event metadata: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *PostgresStore) HasEvent(ctx context.Context, studioID uuid.UUID, action, metaKey, metaValue string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM agent_events
		 WHERE studio_id = $1 AND action = $2 AND metadata->>$3 = $4)`,
		studioID, action, metaKey, metaValue).Scan(&exists)
	return exists, err
}

func (s *PostgresStore) Dashboard(ctx context.Context, studioID uuid.UUID) (*model.Dashboard, error) {
	d := &model.Dashboard{}

	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(final_price - original_price), 0) FROM bookings WHERE studio_id = $1`,
		studioID).Scan(&d.FoundMoney)
	if err != nil {
		return nil, err
	}

	err = s.pool.QueryRow(ctx,
		`SELECT
		   COUNT(*) FILTER (WHERE intake_status = 'approved'),
		   COUNT(*) FILTER (WHERE intake_status = 'declined')
		 FROM leads WHERE studio_id = $1`,
		studioID).Scan(&d.LeadsApproved, &d.LeadsFiltered)
	if err != nil {
		return nil, err
	}

	err = s.pool.QueryRow(ctx,
		`SELECT
		   COUNT(*) FILTER (WHERE action = 'lead_screened'),
		   COUNT(*) FILTER (WHERE action = 'upsell_sent'),
		   COUNT(*) FILTER (WHERE action = 'upsell_accepted'),
		   COUNT(*) FILTER (WHERE action = 'slot_filled')
		 FROM agent_events WHERE studio_id = $1`,
		studioID).Scan(&d.Screens, &d.UpsellsSent, &d.UpsellsWon, &d.GapFills)
	if err != nil {
		return nil, err
	}

	if settled := d.LeadsApproved + d.LeadsFiltered; settled > 0 {
		d.ConversionRate = float64(d.LeadsApproved) / float64(settled)
	}
	return d, nil
}

// Commit applies the decision atomically. Any guard miss rolls the whole
// transaction back with ErrConflict; the transactional commit order is the
// ordering authority for the ledger.
func (s *PostgresStore) Commit(ctx context.Context, studioID uuid.UUID, transitions []Transition, events []model.AgentEvent) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, t := range transitions {
		if err := applyTransition(ctx, tx, studioID, t); err != nil {
			return err
		}
	}
	for i := range events {
		events[i].StudioID = studioID
		if err := appendEventTx(ctx, tx, &events[i]); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// querier is the subset of pgx shared by the pool and an open transaction.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func appendEventTx(ctx context.Context, q querier, event *model.AgentEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	meta, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("encode event metadata: %w", err)
	}
	_, err = q.Exec(ctx,
		`INSERT INTO agent_events (id, studio_id, agent, action, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, event.StudioID, event.Agent, event.Action, meta, event.CreatedAt)
	return err
}

func applyTransition(ctx context.Context, tx pgx.Tx, studioID uuid.UUID, t Transition) error {
	switch tr := t.(type) {
	case CreateLead:
		lead := tr.Lead
		if lead.ID == uuid.Nil {
			lead.ID = uuid.New()
		}
		if lead.IntakeStatus == "" {
			lead.IntakeStatus = model.IntakePending
		}
		if lead.Confirmation == "" {
			lead.Confirmation = model.ConfirmationNone
		}
		if lead.CreatedAt.IsZero() {
			lead.CreatedAt = time.Now().UTC()
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO leads (id, studio_id, name, phone, instagram_handle, intake_status,
			   vibe_score, intake_reasoning, confirmation, version, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, $10)`,
			lead.ID, studioID, lead.Name, lead.Phone, lead.Instagram, lead.IntakeStatus,
			lead.VibeScore, lead.Reasoning, lead.Confirmation, lead.CreatedAt)
		return err

	case ScreenLead:
		tag, err := tx.Exec(ctx,
			`UPDATE leads SET intake_status = $1, vibe_score = $2, intake_reasoning = $3,
			   confirmation = $4, version = version + 1
			 WHERE studio_id = $5 AND id = $6 AND intake_status = 'pending'`,
			tr.Status, tr.Score, tr.Reasoning, tr.Confirmation, studioID, tr.LeadID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrConflict
		}
		return nil

	case ConfirmLead:
		tag, err := tx.Exec(ctx,
			`UPDATE leads SET confirmation = 'confirmed', version = version + 1
			 WHERE studio_id = $1 AND id = $2 AND intake_status = 'approved' AND confirmation = 'awaiting'`,
			studioID, tr.LeadID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrConflict
		}
		return nil

	case AcceptAddOn:
		addon, err := json.Marshal([]model.BookingAddOn{tr.AddOn})
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx,
			`UPDATE bookings SET add_ons = add_ons || $1::jsonb, final_price = final_price + $2
			 WHERE studio_id = $3 AND id = $4 AND status = 'confirmed' AND final_price = $5`,
			addon, tr.AddOn.Price, studioID, tr.BookingID, tr.PriorPrice)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrConflict
		}
		return nil

	case CancelBooking:
		tag, err := tx.Exec(ctx,
			`UPDATE bookings SET status = 'cancelled'
			 WHERE studio_id = $1 AND id = $2 AND status = 'confirmed'`,
			studioID, tr.BookingID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			var status model.BookingStatus
			err := tx.QueryRow(ctx,
				`SELECT status FROM bookings WHERE studio_id = $1 AND id = $2`,
				studioID, tr.BookingID).Scan(&status)
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			if err != nil {
				return err
			}
			if status != model.BookingCancelled {
				return ErrConflict
			}
		}
		return nil

	case MarkNotified:
		tag, err := tx.Exec(ctx,
			`UPDATE waitlist SET notified = true
			 WHERE studio_id = $1 AND id = $2 AND NOT notified`,
			studioID, tr.EntryID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrConflict
		}
		return nil

	case ConsumeEntry:
		_, err := tx.Exec(ctx,
			`UPDATE waitlist SET consumed = true WHERE studio_id = $1 AND id = $2`,
			studioID, tr.EntryID)
		return err

	case CreateBooking:
		b := tr.Booking
		if b.ID == uuid.Nil {
			b.ID = uuid.New()
		}
		if b.Status == "" {
			b.Status = model.BookingConfirmed
		}
		if b.CreatedAt.IsZero() {
			b.CreatedAt = time.Now().UTC()
		}
		addOns := b.AddOns
		if addOns == nil {
			addOns = []model.BookingAddOn{}
		}
		encoded, err := json.Marshal(addOns)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO bookings (id, studio_id, lead_id, service, add_ons, original_price,
			   final_price, scheduled_at, status, source, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			b.ID, studioID, b.LeadID, b.Service, encoded, b.OriginalPrice,
			b.FinalPrice, b.ScheduledAt, b.Status, b.Source, b.CreatedAt)
		return err

	default:
		return fmt.Errorf("unknown transition %T", t)
	}
}
