package store

import (
	"database/sql"
	"fmt"
	"time"
)

// EntityKind returns the kind registered for an id, or ErrNotFound.
func (db *DB) EntityKind(id string) (Kind, error) {
	var kind string
	err := db.QueryRow("SELECT kind FROM entities WHERE id = ?", id).Scan(&kind)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("entity %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("entity kind: %w", err)
	}
	return Kind(kind), nil
}

// HasEntity reports whether an id exists in the registry.
func (db *DB) HasEntity(id string) (bool, error) {
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM entities WHERE id = ?", id).Scan(&n); err != nil {
		return false, fmt.Errorf("has entity: %w", err)
	}
	return n > 0, nil
}

// register inserts the id into the global registry inside tx. A collision
// with any existing id, regardless of kind, fails the insert.
func register(tx *sql.Tx, id string, kind Kind, createdAt int64) error {
	var existing string
	err := tx.QueryRow("SELECT kind FROM entities WHERE id = ?", id).Scan(&existing)
	if err == nil {
		return fmt.Errorf("id %s already registered as %s: %w", id, existing, ErrDuplicateIdentifier)
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("check registry: %w", err)
	}
	if _, err := tx.Exec(
		"INSERT INTO entities (id, kind, created_at) VALUES (?, ?, ?)",
		id, string(kind), createdAt,
	); err != nil {
		return fmt.Errorf("register entity: %w", err)
	}
	return nil
}

func stamp(createdAt int64) int64 {
	if createdAt != 0 {
		return createdAt
	}
	return time.Now().UnixMilli()
}

// insertEntity runs the registry insert plus the kind-table insert in one
// transaction so a failed kind insert leaves no registry row behind.
func (db *DB) insertEntity(id string, kind Kind, createdAt int64, insert func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	if err := register(tx, id, kind, createdAt); err != nil {
		tx.Rollback()
		return err
	}
	if err := insert(tx); err != nil {
		tx.Rollback()
		return fmt.Errorf("insert %s: %w", kind, err)
	}
	return tx.Commit()
}

// InsertFragment stores a new fragment. Fails with ErrDuplicateIdentifier
// if the id is already registered under any kind.
func (db *DB) InsertFragment(f *Fragment) error {
	f.CreatedAt = stamp(f.CreatedAt)
	return db.insertEntity(f.ID, KindFragment, f.CreatedAt, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO fragments (id, text, lens, source_id, seq, superseded_by, superseded_reason, key_terms)
			VALUES (?, ?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), ?)
		`, f.ID, f.Text, f.Lens, f.SourceID, f.Seq, f.SupersededBy, f.SupersededReason, encodeStrings(f.KeyTerms))
		return err
	})
}

// InsertDecision stores a new decision. Status defaults to active.
func (db *DB) InsertDecision(d *Decision) error {
	d.CreatedAt = stamp(d.CreatedAt)
	if d.Status == "" {
		d.Status = DecisionActive
	}
	return db.insertEntity(d.ID, KindDecision, d.CreatedAt, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO decisions (id, question_id, text, rationale, implications, owner, status, key_terms)
			VALUES (?, NULLIF(?, ''), ?, ?, ?, ?, ?, ?)
		`, d.ID, d.QuestionID, d.Text, d.Rationale, encodeStrings(d.Implications), d.Owner, string(d.Status), encodeStrings(d.KeyTerms))
		return err
	})
}

// InsertQuestion stores a new question. Status defaults to pending.
func (db *DB) InsertQuestion(q *Question) error {
	q.CreatedAt = stamp(q.CreatedAt)
	if q.Status == "" {
		q.Status = QuestionPending
	}
	return db.insertEntity(q.ID, KindQuestion, q.CreatedAt, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO questions (id, text, audience, category, priority, status, raised_by, resolved_by, about_item, key_terms)
			VALUES (?, ?, ?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), ?)
		`, q.ID, q.Text, q.Audience, q.Category, q.Priority, string(q.Status), q.RaisedBy, q.ResolvedBy, q.AboutItem, encodeStrings(q.KeyTerms))
		return err
	})
}

// InsertAssessment stores a new assessment.
func (db *DB) InsertAssessment(a *Assessment) error {
	a.CreatedAt = stamp(a.CreatedAt)
	return db.insertEntity(a.ID, KindAssessment, a.CreatedAt, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO assessments (id, subtype, summary, confidence, payload, key_terms)
			VALUES (?, ?, ?, ?, ?, ?)
		`, a.ID, string(a.Subtype), a.Summary, a.Confidence, string(a.Payload), encodeStrings(a.KeyTerms))
		return err
	})
}

// InsertRoadmapItem stores a new roadmap item.
func (db *DB) InsertRoadmapItem(r *RoadmapItem) error {
	r.CreatedAt = stamp(r.CreatedAt)
	return db.insertEntity(r.ID, KindRoadmapItem, r.CreatedAt, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO roadmap_items (id, name, description, horizon, theme, owner, key_terms)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, r.ID, r.Name, r.Description, r.Horizon, r.Theme, r.Owner, encodeStrings(r.KeyTerms))
		return err
	})
}

// InsertGap stores a new gap.
func (db *DB) InsertGap(g *Gap) error {
	g.CreatedAt = stamp(g.CreatedAt)
	return db.insertEntity(g.ID, KindGap, g.CreatedAt, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO gaps (id, description, severity, category, identified_by, addressed_by, key_terms)
			VALUES (?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), ?)
		`, g.ID, g.Description, g.Severity, g.Category, g.IdentifiedBy, g.AddressedBy, encodeStrings(g.KeyTerms))
		return err
	})
}

// GetEntity looks up any entity by id, dispatching on its registered kind.
func (db *DB) GetEntity(id string) (Entity, error) {
	kind, err := db.EntityKind(id)
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindFragment:
		return db.GetFragment(id)
	case KindDecision:
		return db.GetDecision(id)
	case KindQuestion:
		return db.GetQuestion(id)
	case KindAssessment:
		return db.GetAssessment(id)
	case KindRoadmapItem:
		return db.GetRoadmapItem(id)
	case KindGap:
		return db.GetGap(id)
	}
	return nil, fmt.Errorf("entity %s: unknown kind %q", id, kind)
}

const fragmentCols = `f.id, f.text, f.lens, f.source_id, f.seq, f.superseded_by, f.superseded_reason, f.key_terms, e.created_at`

func scanFragment(row interface{ Scan(...any) error }) (*Fragment, error) {
	var f Fragment
	var supBy, supReason, terms sql.NullString
	if err := row.Scan(&f.ID, &f.Text, &f.Lens, &f.SourceID, &f.Seq, &supBy, &supReason, &terms, &f.CreatedAt); err != nil {
		return nil, err
	}
	f.SupersededBy = supBy.String
	f.SupersededReason = supReason.String
	f.KeyTerms = decodeStrings(terms.String)
	return &f, nil
}

// GetFragment returns a fragment by id.
func (db *DB) GetFragment(id string) (*Fragment, error) {
	row := db.QueryRow(`
		SELECT `+fragmentCols+` FROM fragments f JOIN entities e ON e.id = f.id WHERE f.id = ?
	`, id)
	f, err := scanFragment(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("fragment %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get fragment: %w", err)
	}
	return f, nil
}

// Fragments returns all fragments ordered by creation time.
func (db *DB) Fragments() ([]*Fragment, error) {
	rows, err := db.Query(`
		SELECT ` + fragmentCols + ` FROM fragments f JOIN entities e ON e.id = f.id ORDER BY e.created_at, f.id
	`)
	if err != nil {
		return nil, fmt.Errorf("list fragments: %w", err)
	}
	defer rows.Close()

	var out []*Fragment
	for rows.Next() {
		f, err := scanFragment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fragment: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

const decisionCols = `d.id, d.question_id, d.text, d.rationale, d.implications, d.owner, d.status, d.key_terms, e.created_at`

func scanDecision(row interface{ Scan(...any) error }) (*Decision, error) {
	var d Decision
	var questionID, implications, terms sql.NullString
	var status string
	if err := row.Scan(&d.ID, &questionID, &d.Text, &d.Rationale, &implications, &d.Owner, &status, &terms, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.QuestionID = questionID.String
	d.Implications = decodeStrings(implications.String)
	d.Status = DecisionStatus(status)
	d.KeyTerms = decodeStrings(terms.String)
	return &d, nil
}

// GetDecision returns a decision by id.
func (db *DB) GetDecision(id string) (*Decision, error) {
	row := db.QueryRow(`
		SELECT `+decisionCols+` FROM decisions d JOIN entities e ON e.id = d.id WHERE d.id = ?
	`, id)
	d, err := scanDecision(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("decision %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get decision: %w", err)
	}
	return d, nil
}

// Decisions returns all decisions ordered by creation time.
func (db *DB) Decisions() ([]*Decision, error) {
	rows, err := db.Query(`
		SELECT ` + decisionCols + ` FROM decisions d JOIN entities e ON e.id = d.id ORDER BY e.created_at, d.id
	`)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var out []*Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

const questionCols = `q.id, q.text, q.audience, q.category, q.priority, q.status, q.raised_by, q.resolved_by, q.about_item, q.key_terms, e.created_at`

func scanQuestion(row interface{ Scan(...any) error }) (*Question, error) {
	var q Question
	var raisedBy, resolvedBy, aboutItem, terms sql.NullString
	var status string
	if err := row.Scan(&q.ID, &q.Text, &q.Audience, &q.Category, &q.Priority, &status, &raisedBy, &resolvedBy, &aboutItem, &terms, &q.CreatedAt); err != nil {
		return nil, err
	}
	q.Status = QuestionStatus(status)
	q.RaisedBy = raisedBy.String
	q.ResolvedBy = resolvedBy.String
	q.AboutItem = aboutItem.String
	q.KeyTerms = decodeStrings(terms.String)
	return &q, nil
}

// GetQuestion returns a question by id.
func (db *DB) GetQuestion(id string) (*Question, error) {
	row := db.QueryRow(`
		SELECT `+questionCols+` FROM questions q JOIN entities e ON e.id = q.id WHERE q.id = ?
	`, id)
	q, err := scanQuestion(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("question %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get question: %w", err)
	}
	return q, nil
}

// Questions returns all questions ordered by creation time.
func (db *DB) Questions() ([]*Question, error) {
	rows, err := db.Query(`
		SELECT ` + questionCols + ` FROM questions q JOIN entities e ON e.id = q.id ORDER BY e.created_at, q.id
	`)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var out []*Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

const assessmentCols = `a.id, a.subtype, a.summary, a.confidence, a.payload, a.key_terms, e.created_at`

func scanAssessment(row interface{ Scan(...any) error }) (*Assessment, error) {
	var a Assessment
	var subtype string
	var payload, terms sql.NullString
	if err := row.Scan(&a.ID, &subtype, &a.Summary, &a.Confidence, &payload, &terms, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Subtype = AssessmentType(subtype)
	if payload.String != "" {
		a.Payload = []byte(payload.String)
	}
	a.KeyTerms = decodeStrings(terms.String)
	return &a, nil
}

// GetAssessment returns an assessment by id.
func (db *DB) GetAssessment(id string) (*Assessment, error) {
	row := db.QueryRow(`
		SELECT `+assessmentCols+` FROM assessments a JOIN entities e ON e.id = a.id WHERE a.id = ?
	`, id)
	a, err := scanAssessment(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("assessment %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get assessment: %w", err)
	}
	return a, nil
}

// Assessments returns all assessments ordered by creation time.
func (db *DB) Assessments() ([]*Assessment, error) {
	rows, err := db.Query(`
		SELECT ` + assessmentCols + ` FROM assessments a JOIN entities e ON e.id = a.id ORDER BY e.created_at, a.id
	`)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	defer rows.Close()

	var out []*Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

const roadmapCols = `r.id, r.name, r.description, r.horizon, r.theme, r.owner, r.key_terms, e.created_at`

func scanRoadmapItem(row interface{ Scan(...any) error }) (*RoadmapItem, error) {
	var r RoadmapItem
	var terms sql.NullString
	if err := row.Scan(&r.ID, &r.Name, &r.Description, &r.Horizon, &r.Theme, &r.Owner, &terms, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.KeyTerms = decodeStrings(terms.String)
	return &r, nil
}

// GetRoadmapItem returns a roadmap item by id.
func (db *DB) GetRoadmapItem(id string) (*RoadmapItem, error) {
	row := db.QueryRow(`
		SELECT `+roadmapCols+` FROM roadmap_items r JOIN entities e ON e.id = r.id WHERE r.id = ?
	`, id)
	r, err := scanRoadmapItem(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("roadmap item %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get roadmap item: %w", err)
	}
	return r, nil
}

// RoadmapItems returns all roadmap items ordered by creation time.
func (db *DB) RoadmapItems() ([]*RoadmapItem, error) {
	rows, err := db.Query(`
		SELECT ` + roadmapCols + ` FROM roadmap_items r JOIN entities e ON e.id = r.id ORDER BY e.created_at, r.id
	`)
	if err != nil {
		return nil, fmt.Errorf("list roadmap items: %w", err)
	}
	defer rows.Close()

	var out []*RoadmapItem
	for rows.Next() {
		r, err := scanRoadmapItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan roadmap item: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const gapCols = `g.id, g.description, g.severity, g.category, g.identified_by, g.addressed_by, g.key_terms, e.created_at`

func scanGap(row interface{ Scan(...any) error }) (*Gap, error) {
	var g Gap
	var identifiedBy, addressedBy, terms sql.NullString
	if err := row.Scan(&g.ID, &g.Description, &g.Severity, &g.Category, &identifiedBy, &addressedBy, &terms, &g.CreatedAt); err != nil {
		return nil, err
	}
	g.IdentifiedBy = identifiedBy.String
	g.AddressedBy = addressedBy.String
	g.KeyTerms = decodeStrings(terms.String)
	return &g, nil
}

// GetGap returns a gap by id.
func (db *DB) GetGap(id string) (*Gap, error) {
	row := db.QueryRow(`
		SELECT `+gapCols+` FROM gaps g JOIN entities e ON e.id = g.id WHERE g.id = ?
	`, id)
	g, err := scanGap(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("gap %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get gap: %w", err)
	}
	return g, nil
}

// Gaps returns all gaps ordered by creation time.
func (db *DB) Gaps() ([]*Gap, error) {
	rows, err := db.Query(`
		SELECT ` + gapCols + ` FROM gaps g JOIN entities e ON e.id = g.id ORDER BY e.created_at, g.id
	`)
	if err != nil {
		return nil, fmt.Errorf("list gaps: %w", err)
	}
	defer rows.Close()

	var out []*Gap
	for rows.Next() {
		g, err := scanGap(rows)
		if err != nil {
			return nil, fmt.Errorf("scan gap: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// AllEntities returns every entity in the store as the tagged union.
func (db *DB) AllEntities() ([]Entity, error) {
	var out []Entity

	fragments, err := db.Fragments()
	if err != nil {
		return nil, err
	}
	for _, f := range fragments {
		out = append(out, f)
	}

	items, err := db.RoadmapItems()
	if err != nil {
		return nil, err
	}
	for _, r := range items {
		out = append(out, r)
	}

	questions, err := db.Questions()
	if err != nil {
		return nil, err
	}
	for _, q := range questions {
		out = append(out, q)
	}

	decisions, err := db.Decisions()
	if err != nil {
		return nil, err
	}
	for _, d := range decisions {
		out = append(out, d)
	}

	assessments, err := db.Assessments()
	if err != nil {
		return nil, err
	}
	for _, a := range assessments {
		out = append(out, a)
	}

	gaps, err := db.Gaps()
	if err != nil {
		return nil, err
	}
	for _, g := range gaps {
		out = append(out, g)
	}

	return out, nil
}

// MarkFragmentSuperseded records which decision overrode a fragment and why.
func (db *DB) MarkFragmentSuperseded(fragmentID, decisionID, reason string) error {
	res, err := db.Exec(`
		UPDATE fragments SET superseded_by = ?, superseded_reason = ? WHERE id = ?
	`, decisionID, reason, fragmentID)
	if err != nil {
		return fmt.Errorf("mark fragment superseded: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("fragment %s: %w", fragmentID, ErrNotFound)
	}
	return nil
}

// SetQuestionAnswered flips a question to answered and records the
// resolving decision id.
func (db *DB) SetQuestionAnswered(questionID, decisionID string) error {
	res, err := db.Exec(`
		UPDATE questions SET status = ?, resolved_by = ? WHERE id = ?
	`, string(QuestionAnswered), decisionID, questionID)
	if err != nil {
		return fmt.Errorf("set question answered: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("question %s: %w", questionID, ErrNotFound)
	}
	return nil
}

// SetQuestionRaisedBy records the assessment that raised a question.
func (db *DB) SetQuestionRaisedBy(questionID, assessmentID string) error {
	res, err := db.Exec(`UPDATE questions SET raised_by = ? WHERE id = ?`, assessmentID, questionID)
	if err != nil {
		return fmt.Errorf("set question raised_by: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("question %s: %w", questionID, ErrNotFound)
	}
	return nil
}

// SetDecisionStatus transitions a decision's status, enforcing monotonicity:
// superseded is terminal.
func (db *DB) SetDecisionStatus(decisionID string, status DecisionStatus) error {
	d, err := db.GetDecision(decisionID)
	if err != nil {
		return err
	}
	if d.Status == status {
		return nil
	}
	if d.Status == DecisionSuperseded {
		return fmt.Errorf("decision %s is superseded: %w", decisionID, ErrInvalidTransition)
	}
	if _, err := db.Exec(`UPDATE decisions SET status = ? WHERE id = ?`, string(status), decisionID); err != nil {
		return fmt.Errorf("set decision status: %w", err)
	}
	return nil
}

// SetGapAddressedBy records the decision that closes a gap.
func (db *DB) SetGapAddressedBy(gapID, decisionID string) error {
	res, err := db.Exec(`UPDATE gaps SET addressed_by = ? WHERE id = ?`, decisionID, gapID)
	if err != nil {
		return fmt.Errorf("set gap addressed_by: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("gap %s: %w", gapID, ErrNotFound)
	}
	return nil
}
