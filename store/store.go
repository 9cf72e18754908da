// Package store holds the persistence operations behind the handlers.
// Multi-row changes (membership edits, cascading deletes) each run in a
// single transaction.
package store

import (
	"context"
	"errors"
	"strings"

	"taskmanager/access"
	"taskmanager/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// lookup translates a missing row into the NotFound taxonomy error.
func lookup(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return access.NotFound(what)
	}
	return err
}

// ACLOf reduces a project with its Members loaded to the facts the
// access policy needs.
func ACLOf(p *models.Project) access.ProjectACL {
	return access.ProjectACL{OwnerID: p.OwnerID, MemberIDs: p.MemberIDs()}
}

func forUpdate() clause.Expression {
	return clause.Locking{Strength: "UPDATE"}
}

// orderBy turns a DRF-style ordering parameter ("-created_at,title") into
// an ORDER BY clause, keeping only whitelisted fields. The fallback is
// used when nothing usable remains.
func orderBy(ordering string, allowed map[string]string, fallback string) string {
	var parts []string
	for _, f := range strings.Split(ordering, ",") {
		f = strings.TrimSpace(f)
		desc := strings.HasPrefix(f, "-")
		col, ok := allowed[strings.TrimPrefix(f, "-")]
		if !ok {
			continue
		}
		if desc {
			col += " DESC"
		}
		parts = append(parts, col)
	}
	if len(parts) == 0 {
		return fallback
	}
	return strings.Join(parts, ", ")
}

func likePattern(search string) string {
	return "%" + strings.ToLower(strings.TrimSpace(search)) + "%"
}

// missingIDs returns the ids in want that have no row in table.
func missingIDs(tx *gorm.DB, table string, want []uint) ([]uint, error) {
	if len(want) == 0 {
		return nil, nil
	}
	var found []uint
	if err := tx.Table(table).Where("id IN ?", want).Pluck("id", &found).Error; err != nil {
		return nil, err
	}
	have := make(map[uint]bool, len(found))
	for _, id := range found {
		have[id] = true
	}
	var missing []uint
	for _, id := range want {
		if !have[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func dedupe(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func ProjectTarget(p *models.Project) access.Target {
	return access.Target{Kind: access.KindProject, Project: ACLOf(p)}
}

// TaskTarget needs the task loaded with Project.Members.
func TaskTarget(t *models.Task) access.Target {
	return access.Target{Kind: access.KindTask, Project: ACLOf(&t.Project)}
}
