package commit

import (
	"errors"
	"strings"
	"testing"

	"tedgrid/internal/dblib"
	"tedgrid/internal/grid"
)

func usersSchema() *dblib.TableSchema {
	s := &dblib.TableSchema{
		Name: "users",
		Columns: []dblib.Column{
			{Name: "id", Type: "INTEGER", PrimaryKey: true, AutoIncrement: true},
			{Name: "name", Type: "TEXT"},
			{Name: "age", Type: "INTEGER", Nullable: true},
			{Name: "score", Type: "INTEGER", Generated: true},
		},
		PrimaryKey:    []string{"id"},
		AutoIncrement: true,
	}
	s.ColumnIndex = map[string]int{}
	for i, c := range s.Columns {
		s.ColumnIndex[c.Name] = i
	}
	return s
}

func TestBuildPlans_Update(t *testing.T) {
	row := &grid.Row{
		Raw:         map[string]any{"id": int64(1), "name": "A"},
		Change:      map[string]any{"name": "B"},
		ChangeToken: 1,
	}

	plans, err := BuildPlans([]*grid.Row{row}, usersSchema(), dblib.MySQL)
	if err != nil {
		t.Fatalf("BuildPlans failed: %v", err)
	}
	if len(plans) != 1 {
		t.Fatalf("Expected 1 plan, got %d", len(plans))
	}
	p := plans[0]
	if p.Kind != KindUpdate {
		t.Errorf("Expected UPDATE, got %v", p.Kind)
	}
	if want := "UPDATE users SET name = 'B' WHERE id = 1"; p.SQL != want {
		t.Errorf("SQL = %q, want %q", p.SQL, want)
	}
	if p.Key["id"] != int64(1) || p.NewKey != nil {
		t.Errorf("Unexpected key %v / new key %v", p.Key, p.NewKey)
	}
	if p.Row != row {
		t.Error("Plan should reference its row")
	}
}

func TestBuildPlans_InsertAutoIncrement(t *testing.T) {
	row := &grid.Row{
		Raw:         map[string]any{},
		Change:      map[string]any{"name": "C"},
		ChangeToken: 1,
		IsNewRow:    true,
	}

	plans, err := BuildPlans([]*grid.Row{row}, usersSchema(), dblib.MySQL)
	if err != nil {
		t.Fatalf("BuildPlans failed: %v", err)
	}
	if len(plans) != 1 || plans[0].Kind != KindInsert {
		t.Fatalf("Expected one INSERT plan, got %+v", plans)
	}
	if want := "INSERT INTO users (name) VALUES ('C')"; plans[0].SQL != want {
		t.Errorf("SQL = %q, want %q", plans[0].SQL, want)
	}
}

func TestBuildPlans_ReturningOnSQLite(t *testing.T) {
	rows := []*grid.Row{
		{Raw: map[string]any{}, Change: map[string]any{"name": "C"}, ChangeToken: 1, IsNewRow: true},
		{Raw: map[string]any{"id": int64(2)}, Change: map[string]any{"age": nil}, ChangeToken: 2},
	}

	plans, err := BuildPlans(rows, usersSchema(), dblib.SQLite)
	if err != nil {
		t.Fatalf("BuildPlans failed: %v", err)
	}
	if want := "INSERT INTO users (name) VALUES ('C') RETURNING id, name, age, score"; plans[0].SQL != want {
		t.Errorf("SQL = %q, want %q", plans[0].SQL, want)
	}
	if want := "UPDATE users SET age = NULL WHERE id = 2 RETURNING id, name, age, score"; plans[1].SQL != want {
		t.Errorf("SQL = %q, want %q", plans[1].SQL, want)
	}
}

func TestBuildPlans_OrderedByToken(t *testing.T) {
	rows := []*grid.Row{
		{Raw: map[string]any{"id": int64(3)}, Change: map[string]any{}, ChangeToken: 7, IsRemoved: true},
		{Raw: map[string]any{"id": int64(1)}, Change: map[string]any{"age": int64(9)}, ChangeToken: 2},
		{Raw: map[string]any{}, Change: map[string]any{"name": "n"}, ChangeToken: 5, IsNewRow: true},
	}

	plans, err := BuildPlans(rows, usersSchema(), dblib.PostgreSQL)
	if err != nil {
		t.Fatalf("BuildPlans failed: %v", err)
	}
	got := []Kind{plans[0].Kind, plans[1].Kind, plans[2].Kind}
	want := []Kind{KindUpdate, KindInsert, KindDelete}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Plan order = %v, want %v", got, want)
		}
	}
	if plans[2].SQL != "DELETE FROM users WHERE id = 3" {
		t.Errorf("Unexpected DELETE: %s", plans[2].SQL)
	}
}

func TestBuildPlans_RemovedBeatsEdit(t *testing.T) {
	row := &grid.Row{
		Raw:         map[string]any{"id": int64(4), "name": "x"},
		Change:      map[string]any{"name": "y"},
		ChangeToken: 1,
		IsRemoved:   true,
	}
	plans, err := BuildPlans([]*grid.Row{row}, usersSchema(), dblib.SQLite)
	if err != nil {
		t.Fatalf("BuildPlans failed: %v", err)
	}
	if plans[0].Kind != KindDelete {
		t.Errorf("Expected DELETE, got %v", plans[0].Kind)
	}
}

func TestBuildPlans_EditedPrimaryKey(t *testing.T) {
	row := &grid.Row{
		Raw:         map[string]any{"id": int64(1), "name": "A"},
		Change:      map[string]any{"id": int64(5)},
		ChangeToken: 1,
	}
	plans, err := BuildPlans([]*grid.Row{row}, usersSchema(), dblib.MySQL)
	if err != nil {
		t.Fatalf("BuildPlans failed: %v", err)
	}
	p := plans[0]
	if want := "UPDATE users SET id = 5 WHERE id = 1"; p.SQL != want {
		t.Errorf("SQL = %q, want %q", p.SQL, want)
	}
	if p.NewKey["id"] != int64(5) {
		t.Errorf("Expected new key 5, got %v", p.NewKey)
	}
}

func TestBuildPlans_CompositeKeyWithNull(t *testing.T) {
	schema := &dblib.TableSchema{
		Name: "Memberships",
		Columns: []dblib.Column{
			{Name: "team", Type: "TEXT", PrimaryKey: true},
			{Name: "user", Type: "INTEGER", PrimaryKey: true},
			{Name: "role", Type: "TEXT", Nullable: true},
		},
		ColumnIndex: map[string]int{"team": 0, "user": 1, "role": 2},
		PrimaryKey:  []string{"user", "team"},
	}
	row := &grid.Row{
		Raw:         map[string]any{"team": nil, "user": int64(7), "role": "dev"},
		Change:      map[string]any{"role": "O'Neil"},
		ChangeToken: 1,
	}
	plans, err := BuildPlans([]*grid.Row{row}, schema, dblib.PostgreSQL)
	if err != nil {
		t.Fatalf("BuildPlans failed: %v", err)
	}
	want := `UPDATE "Memberships" SET role = 'O''Neil' WHERE "user" = 7 AND team IS NULL RETURNING team, "user", role`
	if plans[0].SQL != want {
		t.Errorf("SQL = %q, want %q", plans[0].SQL, want)
	}
}

func TestBuildPlans_EmptyInsert(t *testing.T) {
	schema := usersSchema()
	schema.Columns[1].Nullable = true
	row := &grid.Row{Raw: map[string]any{}, Change: map[string]any{}, ChangeToken: 1, IsNewRow: true}

	tests := []struct {
		dialect dblib.DatabaseType
		want    string
	}{
		{dblib.MySQL, "INSERT INTO users () VALUES ()"},
		{dblib.PostgreSQL, "INSERT INTO users DEFAULT VALUES RETURNING id, name, age, score"},
	}
	for _, tt := range tests {
		t.Run(tt.dialect.String(), func(t *testing.T) {
			plans, err := BuildPlans([]*grid.Row{row}, schema, tt.dialect)
			if err != nil {
				t.Fatalf("BuildPlans failed: %v", err)
			}
			if plans[0].SQL != tt.want {
				t.Errorf("SQL = %q, want %q", plans[0].SQL, tt.want)
			}
		})
	}
}

func TestBuildPlans_ValidationErrors(t *testing.T) {
	noKey := usersSchema()
	noKey.PrimaryKey = nil
	noKey.AutoIncrement = false

	tests := []struct {
		name   string
		schema *dblib.TableSchema
		rows   []*grid.Row
		reason string
	}{
		{
			name:   "no primary key",
			schema: noKey,
			rows:   []*grid.Row{{Raw: map[string]any{"id": int64(1)}, Change: map[string]any{}, ChangeToken: 1, IsRemoved: true}},
			reason: "no primary key",
		},
		{
			name:   "missing required column",
			schema: usersSchema(),
			rows:   []*grid.Row{{Raw: map[string]any{}, Change: map[string]any{"age": int64(3)}, ChangeToken: 1, IsNewRow: true}},
			reason: "missing required column(s): name",
		},
		{
			name:   "generated column",
			schema: usersSchema(),
			rows:   []*grid.Row{{Raw: map[string]any{"id": int64(1)}, Change: map[string]any{"score": int64(3)}, ChangeToken: 1}},
			reason: "generated",
		},
		{
			name:   "unknown column",
			schema: usersSchema(),
			rows:   []*grid.Row{{Raw: map[string]any{"id": int64(1)}, Change: map[string]any{"total": int64(3)}, ChangeToken: 1}},
			reason: "does not exist",
		},
		{
			name:   "key not in result",
			schema: usersSchema(),
			rows:   []*grid.Row{{Raw: map[string]any{"name": "A"}, Change: map[string]any{"name": "B"}, ChangeToken: 1}},
			reason: "cannot be located",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok := &grid.Row{Raw: map[string]any{"id": int64(9)}, Change: map[string]any{"age": int64(1)}, ChangeToken: 99}
			plans, err := BuildPlans(append(tt.rows, ok), tt.schema, dblib.SQLite)
			if plans != nil {
				t.Errorf("Expected no plans, got %d", len(plans))
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected *ValidationError, got %v", err)
			}
			if !strings.Contains(verr.Reason, tt.reason) {
				t.Errorf("Reason %q does not mention %q", verr.Reason, tt.reason)
			}
		})
	}
}

func TestBuildPlans_SkipsIdleRows(t *testing.T) {
	idle := &grid.Row{Raw: map[string]any{"id": int64(1)}}
	plans, err := BuildPlans([]*grid.Row{idle, nil}, usersSchema(), dblib.SQLite)
	if err != nil || len(plans) != 0 {
		t.Errorf("Expected nothing to do, got %v, %v", plans, err)
	}
}

func TestPreview(t *testing.T) {
	rows := []*grid.Row{
		{Raw: map[string]any{"id": int64(1)}, Change: map[string]any{"name": "B"}, ChangeToken: 1},
		{Raw: map[string]any{"id": int64(2)}, Change: map[string]any{}, ChangeToken: 2, IsRemoved: true},
	}
	plans, err := BuildPlans(rows, usersSchema(), dblib.MySQL)
	if err != nil {
		t.Fatalf("BuildPlans failed: %v", err)
	}
	want := "UPDATE users SET name = 'B' WHERE id = 1;\nDELETE FROM users WHERE id = 2;"
	if got := Preview(plans); got != want {
		t.Errorf("Preview() = %q, want %q", got, want)
	}
}
