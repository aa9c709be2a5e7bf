package sqlxrepos

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kundi/core/academia"
)

// Wrap adapts a plain database handle for the repositories here.
func Wrap(db *sql.DB) *sqlx.DB {
	return sqlx.NewDb(db, "postgres")
}

// scopeIDs splits a scope into the (assignment_id, course_id) column
// pair; exactly one of the two is set.
func scopeIDs(scope academia.Scope) (asmID, crsID null.Int) {
	if scope.IsAssignment() {
		asmID = null.IntFrom(scope.ID)
	} else {
		crsID = null.IntFrom(scope.ID)
	}
	return asmID, crsID
}

func scopeFromIDs(asmID, crsID null.Int) academia.Scope {
	if asmID.Valid {
		return academia.Scope{Kind: academia.ScopeAssignment, ID: asmID.Int}
	}
	return academia.Scope{Kind: academia.ScopeCourse, ID: crsID.Int}
}

// scopeCond renders the scope match condition with the scope id bound
// to the given placeholder.
func scopeCond(scope academia.Scope, placeholder string) string {
	if scope.IsAssignment() {
		return "assignment_id = " + placeholder
	}
	return "course_id = " + placeholder
}
