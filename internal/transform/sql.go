package transform

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/data-tracks/DataTracks/internal/train"
	"github.com/data-tracks/DataTracks/internal/value"
)

// sqlDriver implements the "sql" language: a restricted
// `SELECT <cols> FROM $N [WHERE <predicate>]` surface syntax (spec.md §6).
// The predicate is compiled once with github.com/expr-lang/expr exactly as
// the teacher's job classification rules compile requirement/rule
// expressions with expr.Compile(expr.AsBool()) and evaluate them with
// expr.Run against a row-shaped environment.
type sqlDriver struct{}

// NewSQLDriver builds the built-in "sql" driver.
func NewSQLDriver() Driver { return sqlDriver{} }

type sqlQuery struct {
	columns   []int // 1-indexed $N selections; nil/empty means "*"
	fromLine  int   // 1-indexed $N naming the source line
	predicate *vm.Program
}

func (sqlDriver) Compile(query string) (Query, error) {
	q := strings.TrimSpace(query)
	upper := strings.ToUpper(q)
	if !strings.HasPrefix(upper, "SELECT") {
		return nil, fmt.Errorf("sql: query must start with SELECT")
	}
	fromIdx := strings.Index(upper, "FROM")
	if fromIdx < 0 {
		return nil, fmt.Errorf("sql: missing FROM clause")
	}
	colsPart := strings.TrimSpace(q[len("SELECT"):fromIdx])
	rest := strings.TrimSpace(q[fromIdx+len("FROM"):])

	whereIdx := strings.Index(strings.ToUpper(rest), "WHERE")
	fromPart := rest
	var wherePart string
	if whereIdx >= 0 {
		fromPart = strings.TrimSpace(rest[:whereIdx])
		wherePart = strings.TrimSpace(rest[whereIdx+len("WHERE"):])
	}

	fromLine, err := parsePlaceholder(fromPart)
	if err != nil {
		return nil, fmt.Errorf("sql: invalid FROM clause %q: %w", fromPart, err)
	}

	var columns []int
	if colsPart != "*" && colsPart != "" {
		for _, c := range strings.Split(colsPart, ",") {
			c = strings.TrimSpace(c)
			n, err := parsePlaceholder(c)
			if err != nil {
				return nil, fmt.Errorf("sql: invalid column %q: %w", c, err)
			}
			columns = append(columns, n)
		}
	}

	var prog *vm.Program
	if wherePart != "" {
		prog, err = expr.Compile(rewritePlaceholders(wherePart), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("sql: compiling WHERE clause: %w", err)
		}
	}

	return &sqlQuery{columns: columns, fromLine: fromLine, predicate: prog}, nil
}

func parsePlaceholder(s string) (int, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "$") {
		return 0, fmt.Errorf("expected $N placeholder")
	}
	return strconv.Atoi(s[1:])
}

// rewritePlaceholders turns $1, $2, ... into valid expr identifiers p1, p2, ...
func rewritePlaceholders(src string) string {
	var b strings.Builder
	for i := 0; i < len(src); i++ {
		if src[i] == '$' && i+1 < len(src) && src[i+1] >= '0' && src[i+1] <= '9' {
			b.WriteByte('p')
			continue
		}
		b.WriteByte(src[i])
	}
	return b.String()
}

// Run evaluates the compiled query against in's wagons. $N within the
// predicate binds to the value at position N-1 of each wagon (converted to
// a native Go value for expr's environment); the FROM $N clause selects
// which wagon position is the row being filtered when a wagon carries more
// than one candidate source (normally fromLine is redundant with the
// dispatcher's single-train invocation and serves as a sanity bound).
func (q *sqlQuery) Run(lineID uint32, in *train.Train) ([]*train.Train, error) {
	var outWagons []train.Wagon
	for _, w := range in.Wagons() {
		if q.fromLine > w.Len() {
			return nil, &ErrTransformError{LineID: lineID, Reason: fmt.Sprintf("FROM $%d exceeds wagon width %d", q.fromLine, w.Len())}
		}
		if q.predicate != nil {
			env := wagonEnv(w)
			result, err := expr.Run(q.predicate, env)
			if err != nil {
				return nil, &ErrTransformError{LineID: lineID, Reason: err.Error()}
			}
			matched, ok := result.(bool)
			if !ok || !matched {
				continue
			}
		}
		outWagons = append(outWagons, projectColumns(w, q.columns))
	}
	if len(outWagons) == 0 {
		return nil, nil
	}
	return []*train.Train{train.New(in.EventTS, in.OriginLine, outWagons)}, nil
}

func wagonEnv(w train.Wagon) map[string]interface{} {
	env := make(map[string]interface{}, w.Len())
	for i := 0; i < w.Len(); i++ {
		v, _ := w.At(i)
		env[fmt.Sprintf("p%d", i+1)] = toNative(v)
	}
	return env
}

func toNative(v value.Value) interface{} {
	switch v.Kind {
	case value.KindNull:
		return nil
	case value.KindInt:
		return v.Int
	case value.KindFloat:
		return v.Float.AsFloat64()
	case value.KindBool:
		return v.Bool
	case value.KindText:
		return v.Text
	case value.KindTime:
		return v.Time.Ms
	case value.KindDate:
		return v.Date
	default:
		return nil
	}
}

func projectColumns(w train.Wagon, columns []int) train.Wagon {
	if len(columns) == 0 {
		return w
	}
	ids := w.LineIDs()
	vals := w.Values()
	outIDs := make([]uint32, 0, len(columns))
	outVals := make([]value.Value, 0, len(columns))
	for _, c := range columns {
		if c < 1 || c > len(vals) {
			continue
		}
		outIDs = append(outIDs, ids[c-1])
		outVals = append(outVals, vals[c-1])
	}
	return train.NewWagon(outIDs, outVals)
}
