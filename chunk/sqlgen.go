package chunk

import (
	"bytes"
	"io"
	"strings"

	"github.com/joeycumines/go-replicore/dbmsevent"
	"github.com/pingcap/tidb/parser/ast"
	"github.com/pingcap/tidb/parser/format"
	"github.com/pingcap/tidb/parser/model"
	"github.com/pingcap/tidb/parser/opcode"
)

// restoreFlags mirrors the teacher's mysql.Dialect default: no backtick
// suppression, quote identifiers, keywords uppercased.
const restoreFlags = format.DefaultRestoreFlags

func newCIStr(name string) model.CIStr {
	return model.CIStr{O: name, L: strings.ToLower(name)}
}

func newTableName(table dbmsevent.Table) *ast.TableName {
	return &ast.TableName{
		Schema: newCIStr(table.Schema),
		Name:   newCIStr(table.Name),
	}
}

func astFormat(node ast.Node) (string, error) {
	var b bytes.Buffer
	if err := node.Restore(format.NewRestoreCtx(restoreFlags, &b)); err != nil {
		return ``, err
	}
	return b.String(), nil
}

// probeSQL builds "SELECT MIN(pk), MAX(pk), COUNT(*) FROM schema.table",
// the single aggregate query spec.md §4.7 step 2 probes with.
func probeSQL(table dbmsevent.Table, pkColumn string) (string, error) {
	pkCol := &ast.ColumnNameExpr{Name: &ast.ColumnName{Name: newCIStr(pkColumn)}}

	stmt := ast.SelectStmt{
		SelectStmtOpts: &ast.SelectStmtOpts{SQLCache: true},
		From:           &ast.TableRefsClause{TableRefs: &ast.Join{Left: &ast.TableSource{Source: newTableName(table)}}},
		Fields: &ast.FieldList{Fields: []*ast.SelectField{
			{Expr: &ast.AggregateFuncExpr{F: `min`, Args: []ast.ExprNode{pkCol}}},
			{Expr: &ast.AggregateFuncExpr{F: `max`, Args: []ast.ExprNode{pkCol}}},
			{Expr: &ast.AggregateFuncExpr{F: `count`, Args: []ast.ExprNode{&astRawExpr{raw: `*`}}}},
		}},
	}

	return astFormat(&stmt)
}

// rangeWhere builds the closed-open-on-start, closed-on-end predicate
// "pk > ? AND pk <= ?" used to bound a chunk's extraction query. Either
// bound may be omitted (nil start/end), matching a whole-table or
// open-ended chunk.
func rangeWhere(pkColumn string, hasStart, hasEnd bool) (string, error) {
	pkCol := func() *ast.ColumnNameExpr {
		return &ast.ColumnNameExpr{Name: &ast.ColumnName{Name: newCIStr(pkColumn)}}
	}

	var expr ast.ExprNode
	switch {
	case hasStart && hasEnd:
		expr = &ast.BinaryOperationExpr{
			Op: opcode.LogicAnd,
			L:  &ast.BinaryOperationExpr{Op: opcode.GT, L: pkCol(), R: &astRawExpr{raw: `?`}},
			R:  &ast.BinaryOperationExpr{Op: opcode.LE, L: pkCol(), R: &astRawExpr{raw: `?`}},
		}
	case hasStart:
		expr = &ast.BinaryOperationExpr{Op: opcode.GT, L: pkCol(), R: &astRawExpr{raw: `?`}}
	case hasEnd:
		expr = &ast.BinaryOperationExpr{Op: opcode.LE, L: pkCol(), R: &astRawExpr{raw: `?`}}
	default:
		return ``, nil
	}

	return astFormat(expr)
}

// BuildRangeQuery generates the bounded extraction query for chunk over
// table, projecting columns (or "*" if empty) and bounding on pkColumn, the
// column the chunk was cut on. It returns the query text and the bind
// arguments, in the order the generated placeholders expect.
func BuildRangeQuery(table dbmsevent.Table, columns []string, pkColumn string, chunk dbmsevent.NumericChunk) (query string, args []any, err error) {
	var fields *ast.FieldList
	if len(columns) == 0 {
		fields = &ast.FieldList{Fields: []*ast.SelectField{{WildCard: &ast.WildCardField{}}}}
	} else {
		fields = &ast.FieldList{}
		for _, col := range columns {
			fields.Fields = append(fields.Fields, &ast.SelectField{
				Expr: &ast.ColumnNameExpr{Name: &ast.ColumnName{Name: newCIStr(col)}},
			})
		}
	}

	stmt := ast.SelectStmt{
		SelectStmtOpts: &ast.SelectStmtOpts{SQLCache: true},
		From:           &ast.TableRefsClause{TableRefs: &ast.Join{Left: &ast.TableSource{Source: newTableName(table)}}},
		Fields:         fields,
	}

	if !chunk.WholeTable() && !chunk.Poison() {
		where, werr := rangeWhere(pkColumn, chunk.StartKey != nil, chunk.EndKey != nil)
		if werr != nil {
			return ``, nil, werr
		}
		if where != `` {
			stmt.Where = &astRawExpr{raw: where}
		}
		if chunk.StartKey != nil {
			args = append(args, chunk.StartKey.RatString())
		}
		if chunk.EndKey != nil {
			args = append(args, chunk.EndKey.RatString())
		}
	}

	query, err = astFormat(&stmt)
	return query, args, err
}

// astRawExpr passes pre-rendered SQL text through Restore unmodified,
// mirroring the teacher's astNodeString.
type astRawExpr struct {
	ast.ExprNode
	raw string
}

func (x *astRawExpr) Restore(ctx *format.RestoreCtx) error {
	_, err := io.Copy(ctx.In, strings.NewReader(x.raw))
	return err
}
