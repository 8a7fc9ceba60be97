// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package subbuilder

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tosubstrait/pkg/sql/plan"
	"github.com/cockroachdb/tosubstrait/pkg/util/log"
	pb "github.com/substrait-io/substrait-protobuf/go/substraitpb"
)

// dummyValue is the placeholder column of the single row produced for a
// dummy scan. Consumers project it away.
const dummyValue = 42

func (b *Builder) buildRelational(op plan.Operator) (*pb.Rel, error) {
	if log.ExpensiveLogEnabled(b.ctx, 2) {
		log.VEventf(b.ctx, 2, "lowering %s", op.Op())
	}
	var rel *pb.Rel
	var err error
	switch t := op.(type) {
	case *plan.Filter:
		rel, err = b.buildFilter(t)

	case *plan.Projection:
		rel, err = b.buildProjection(t)

	case *plan.Order:
		rel, err = b.buildSort(t.Input, t.Orders)

	case *plan.TopN:
		rel, err = b.buildTopN(t)

	case *plan.Limit:
		rel, err = b.buildLimit(t)

	case *plan.ComparisonJoin:
		rel, err = b.buildJoin(t)

	case *plan.Aggregate:
		rel, err = b.buildAggregate(t)

	case *plan.Get:
		rel, err = b.buildScan(t)

	case *plan.ExpressionGet:
		rel, err = b.buildExpressionGet(t)

	case *plan.DummyScan:
		rel = b.buildDummyScan()

	case *plan.CrossProduct:
		rel, err = b.buildCrossProduct(t)

	case *plan.SetOperation:
		rel, err = b.buildSetOp(t)

	case *plan.Distinct:
		rel, err = b.buildDistinct(t)

	case *plan.CreateTable:
		rel, err = b.buildCreateTable(t)

	case *plan.Insert:
		rel, err = b.buildInsert(t)

	default:
		return nil, unimplementedf("logical operator %s not supported", op.Op())
	}
	if err != nil {
		return nil, err
	}
	return rel, nil
}

// emit records a relation of the given kind.
func (b *Builder) emit(kind string, rel *pb.Rel) *pb.Rel {
	b.relations = append(b.relations, kind)
	return rel
}

func (b *Builder) project(input *pb.Rel, exprs []*pb.Expression) *pb.Rel {
	return b.emit("project", &pb.Rel{RelType: &pb.Rel_Project{Project: &pb.ProjectRel{
		Input:       input,
		Expressions: exprs,
	}}})
}

// projectColumns re-emits the given input columns, each shifted by offset.
func projectColumns(cols []int, offset int) []*pb.Expression {
	exprs := make([]*pb.Expression, len(cols))
	for i, c := range cols {
		exprs[i] = fieldRef(c + offset)
	}
	return exprs
}

func (b *Builder) buildFilter(f *plan.Filter) (*pb.Rel, error) {
	res, err := b.buildRelational(f.Input)
	if err != nil {
		return nil, err
	}
	if len(f.Expressions) > 0 {
		cond, err := b.foldConjunction(len(f.Expressions), func(i int) (*pb.Expression, error) {
			return b.buildScalar(f.Expressions[i], 0 /* colOffset */)
		})
		if err != nil {
			return nil, err
		}
		res = b.emit("filter", &pb.Rel{RelType: &pb.Rel_Filter{Filter: &pb.FilterRel{
			Input:     res,
			Condition: cond,
		}}})
	}
	if len(f.ProjectionMap) > 0 {
		res = b.project(res, projectColumns(f.ProjectionMap, 0 /* offset */))
	}
	return res, nil
}

func (b *Builder) buildProjection(p *plan.Projection) (*pb.Rel, error) {
	input, err := b.buildRelational(p.Input)
	if err != nil {
		return nil, err
	}
	exprs, err := b.buildScalars(p.Expressions, 0 /* colOffset */)
	if err != nil {
		return nil, err
	}
	return b.project(input, exprs), nil
}

func sortDirection(o plan.OrderByNode) (pb.SortField_SortDirection, error) {
	switch o.Type {
	case plan.OrderAscending:
		switch o.NullOrder {
		case plan.NullsFirst:
			return pb.SortField_SORT_DIRECTION_ASC_NULLS_FIRST, nil
		case plan.NullsLast:
			return pb.SortField_SORT_DIRECTION_ASC_NULLS_LAST, nil
		}
	case plan.OrderDescending:
		switch o.NullOrder {
		case plan.NullsFirst:
			return pb.SortField_SORT_DIRECTION_DESC_NULLS_FIRST, nil
		case plan.NullsLast:
			return pb.SortField_SORT_DIRECTION_DESC_NULLS_LAST, nil
		}
	}
	return 0, errors.AssertionFailedf("unsupported ordering type %d with null order %d", o.Type, o.NullOrder)
}

func (b *Builder) buildSort(input plan.Operator, orders []plan.OrderByNode) (*pb.Rel, error) {
	in, err := b.buildRelational(input)
	if err != nil {
		return nil, err
	}
	sorts := make([]*pb.SortField, len(orders))
	for i, o := range orders {
		dir, err := sortDirection(o)
		if err != nil {
			return nil, err
		}
		expr, err := b.buildScalar(o.Expr, 0 /* colOffset */)
		if err != nil {
			return nil, err
		}
		sorts[i] = &pb.SortField{
			Expr:     expr,
			SortKind: &pb.SortField_Direction{Direction: dir},
		}
	}
	return b.emit("sort", &pb.Rel{RelType: &pb.Rel_Sort{Sort: &pb.SortRel{
		Input: in,
		Sorts: sorts,
	}}}), nil
}

func (b *Builder) fetch(input *pb.Rel, offset, count int64) *pb.Rel {
	return b.emit("fetch", &pb.Rel{RelType: &pb.Rel_Fetch{Fetch: &pb.FetchRel{
		Input:      input,
		OffsetMode: &pb.FetchRel_Offset{Offset: offset},
		CountMode:  &pb.FetchRel_Count{Count: count},
	}}})
}

// buildTopN lowers TopN to a fetch over a sort.
func (b *Builder) buildTopN(t *plan.TopN) (*pb.Rel, error) {
	sort, err := b.buildSort(t.Input, t.Orders)
	if err != nil {
		return nil, err
	}
	return b.fetch(sort, t.Offset, t.Limit), nil
}

// limitValue returns the constant of v, or unset if v is not set.
func limitValue(v plan.LimitValue, unset int64) (int64, error) {
	switch v.Kind {
	case plan.LimitConstant:
		return v.Constant, nil
	case plan.LimitUnset:
		return unset, nil
	}
	return 0, unimplementedf("unsupported limit value type %s", v.Kind)
}

// buildLimit lowers LIMIT and OFFSET to a fetch. A missing limit is a count
// of -1, which fetches every row.
func (b *Builder) buildLimit(l *plan.Limit) (*pb.Rel, error) {
	count, err := limitValue(l.Limit, -1)
	if err != nil {
		return nil, err
	}
	offset, err := limitValue(l.Offset, 0)
	if err != nil {
		return nil, err
	}
	input, err := b.buildRelational(l.Input)
	if err != nil {
		return nil, err
	}
	return b.fetch(input, offset, count), nil
}

var joinTypes = map[plan.JoinType]pb.JoinRel_JoinType{
	plan.InnerJoin:  pb.JoinRel_JOIN_TYPE_INNER,
	plan.LeftJoin:   pb.JoinRel_JOIN_TYPE_LEFT,
	plan.RightJoin:  pb.JoinRel_JOIN_TYPE_RIGHT,
	plan.OuterJoin:  pb.JoinRel_JOIN_TYPE_OUTER,
	plan.SemiJoin:   pb.JoinRel_JOIN_TYPE_LEFT_SEMI,
	plan.SingleJoin: pb.JoinRel_JOIN_TYPE_LEFT_SINGLE,
}

// leftColumnCount returns the number of columns the left input contributes
// to the input of the join's condition. A left input that is itself a join
// contributes the columns of its projection maps.
func leftColumnCount(j *plan.ComparisonJoin) int {
	child, ok := j.Left.(*plan.ComparisonJoin)
	if !ok {
		return len(j.Left.OutputTypes())
	}
	left, right := child.ProjectionMaps()
	if !child.Type.ProducesRightColumns() {
		return len(left)
	}
	return len(left) + len(right)
}

// buildJoin lowers a comparison join. The columns of the right input follow
// those of the left input in the join's output, so the right side of every
// condition is shifted by the left column count. The join is wrapped in a
// projection that applies the join's projection maps.
func (b *Builder) buildJoin(j *plan.ComparisonJoin) (*pb.Rel, error) {
	left, err := b.buildRelational(j.Left)
	if err != nil {
		return nil, err
	}
	right, err := b.buildRelational(j.Right)
	if err != nil {
		return nil, err
	}

	leftCount := leftColumnCount(j)
	cond, err := b.foldConjunction(len(j.Conditions), func(i int) (*pb.Expression, error) {
		return b.buildJoinCondition(j.Conditions[i], leftCount)
	})
	if err != nil {
		return nil, err
	}

	typ, ok := joinTypes[j.Type]
	if !ok {
		return nil, unimplementedf("unsupported join type %s", j.Type)
	}
	join := b.emit("join", &pb.Rel{RelType: &pb.Rel_Join{Join: &pb.JoinRel{
		Left:       left,
		Right:      right,
		Expression: cond,
		Type:       typ,
	}}})

	leftMap, rightMap := j.ProjectionMaps()
	exprs := projectColumns(leftMap, 0 /* offset */)
	if j.Type != plan.SemiJoin {
		exprs = append(exprs, projectColumns(rightMap, leftCount)...)
	}
	return b.project(join, exprs), nil
}

func (b *Builder) buildJoinCondition(c plan.JoinCondition, leftCount int) (*pb.Expression, error) {
	name, ok := comparisonFuncs[c.Comparison]
	if !ok {
		return nil, unimplementedf("unsupported join comparison: %s", c.Comparison)
	}
	left, err := b.buildScalar(c.Left, 0 /* colOffset */)
	if err != nil {
		return nil, err
	}
	right, err := b.buildScalar(c.Right, leftCount)
	if err != nil {
		return nil, err
	}
	typs, err := argTypes(c.Left, c.Right)
	if err != nil {
		return nil, err
	}
	return scalarCall(b.funcs.Resolve(name, typs), boolType(), left, right), nil
}

// buildAggregate lowers a GROUP BY into a single grouping set. Group keys
// must be column references and measures must be aggregate calls.
func (b *Builder) buildAggregate(a *plan.Aggregate) (*pb.Rel, error) {
	input, err := b.buildRelational(a.Input)
	if err != nil {
		return nil, err
	}
	grouping := &pb.AggregateRel_Grouping{}
	for _, g := range a.Groups {
		if _, ok := g.(*plan.ColumnRef); !ok {
			return nil, unimplementedf("no expressions in groupings yet")
		}
		expr, err := b.buildScalar(g, 0 /* colOffset */)
		if err != nil {
			return nil, err
		}
		grouping.GroupingExpressions = append(grouping.GroupingExpressions, expr)
	}

	measures := make([]*pb.AggregateRel_Measure, len(a.Aggregates))
	for i, e := range a.Aggregates {
		agg, ok := e.(*plan.AggregateCall)
		if !ok {
			return nil, unimplementedf("no non-aggregate expressions in measures yet")
		}
		out, err := buildType(agg.Typ, false /* notNull */)
		if err != nil {
			return nil, err
		}
		fn := &pb.AggregateFunction{OutputType: out}
		typs := make([]*pb.Type, len(agg.Args))
		for j, arg := range agg.Args {
			if typs[j], err = buildType(arg.ResultType(), false /* notNull */); err != nil {
				return nil, err
			}
			expr, err := b.buildScalar(arg, 0 /* colOffset */)
			if err != nil {
				return nil, err
			}
			fn.Arguments = append(fn.Arguments, valueArg(expr))
		}
		fn.FunctionReference = b.funcs.Resolve(agg.Func, typs)
		if agg.Distinct {
			fn.Invocation = pb.AggregateFunction_AGGREGATION_INVOCATION_DISTINCT
		}
		measures[i] = &pb.AggregateRel_Measure{Measure: fn}
	}

	return b.emit("aggregate", &pb.Rel{RelType: &pb.Rel_Aggregate{Aggregate: &pb.AggregateRel{
		Input:     input,
		Groupings: []*pb.AggregateRel_Grouping{grouping},
		Measures:  measures,
	}}}), nil
}

// buildScan lowers a table or file scan. Filters pushed into the scan become
// the read's filter over the base schema, and a pushed-down column selection
// becomes the read's projection mask.
func (b *Builder) buildScan(scan *plan.Get) (*pb.Rel, error) {
	if scan.Bind == nil {
		return nil, unimplementedf(
			"this scanner type can't be used in substrait because a get bind info is not yet implemented")
	}
	read := &pb.ReadRel{}
	if len(scan.Filters) > 0 {
		filter, err := b.buildTableFilters(scan)
		if err != nil {
			return nil, err
		}
		read.Filter = filter
	}
	read.Projection = projectionMask(scan)

	var err error
	switch scan.Bind.Kind {
	case plan.TableScan:
		if scan.Bind.Table == nil {
			return nil, errors.AssertionFailedf("table scan without table")
		}
		notNull := notNullColumns(scan.Bind.Table)
		read.BaseSchema, err = b.baseSchema(scan, func(col int) bool { return notNull[col] })
		if err != nil {
			return nil, err
		}
		read.ReadType = &pb.ReadRel_NamedTable_{NamedTable: &pb.ReadRel_NamedTable{
			Names: []string{scan.Bind.Table.TableName()},
		}}

	case plan.ParquetScan:
		read.BaseSchema, err = b.baseSchema(scan, func(int) bool { return false })
		if err != nil {
			return nil, err
		}
		paths := scan.Bind.OptionList(plan.FilePathOption)
		files := &pb.ReadRel_LocalFiles{Items: make([]*pb.ReadRel_LocalFiles_FileOrFiles, len(paths))}
		for i, p := range paths {
			files.Items[i] = &pb.ReadRel_LocalFiles_FileOrFiles{
				PathType: &pb.ReadRel_LocalFiles_FileOrFiles_UriFile{UriFile: p},
				FileFormat: &pb.ReadRel_LocalFiles_FileOrFiles_Parquet{
					Parquet: &pb.ReadRel_LocalFiles_FileOrFiles_ParquetReadOptions{},
				},
			}
		}
		read.ReadType = &pb.ReadRel_LocalFiles_{LocalFiles: files}

	default:
		return nil, unimplementedf("scan type %s is not yet implemented", scan.Bind.Kind)
	}
	return b.emit("read", &pb.Rel{RelType: &pb.Rel_Read{Read: read}}), nil
}

// notNullColumns returns the columns of t with a NOT NULL constraint.
func notNullColumns(t plan.TableEntry) map[int]bool {
	cols := make(map[int]bool)
	for _, c := range t.TableConstraints() {
		if nn, ok := c.(*plan.NotNullConstraint); ok {
			cols[nn.Column] = true
		}
	}
	return cols
}

// baseSchema describes every column the scan can produce. notNull reports
// whether a source column never holds NULL.
func (b *Builder) baseSchema(scan *plan.Get, notNull func(col int) bool) (*pb.NamedStruct, error) {
	schema := &pb.NamedStruct{Struct: &pb.Type_Struct{
		Types:       make([]*pb.Type, len(scan.ReturnedTypes)),
		Nullability: pb.Type_NULLABILITY_REQUIRED,
	}}
	for i, typ := range scan.ReturnedTypes {
		schema.Names = append(schema.Names, scan.Names[i])
		schema.Names = append(schema.Names, depthFirstNames(typ)...)
		if scan.Statistics != nil && log.V(2) {
			if stats := scan.Statistics(i); stats != nil {
				log.VEventf(b.ctx, 2, "column %s: can have null %t, can have non-null %t, distinct count %d",
					scan.Names[i], stats.CanHaveNull, stats.CanHaveNoNull, stats.DistinctCount)
			}
		}
		t, err := buildType(typ, notNull(i))
		if err != nil {
			return nil, err
		}
		schema.Struct.Types[i] = t
	}
	return schema, nil
}

// projectionMask selects the output columns of the scan from its base
// schema. It is nil if the scan produces every column in order.
func projectionMask(scan *plan.Get) *pb.Expression_MaskExpression {
	cols := scan.OutputColumns()
	identity := len(cols) == len(scan.ReturnedTypes)
	for i, c := range cols {
		identity = identity && c == i
	}
	if identity {
		return nil
	}
	items := make([]*pb.Expression_MaskExpression_StructItem, len(cols))
	for i, c := range cols {
		items[i] = &pb.Expression_MaskExpression_StructItem{Field: int32(c)}
	}
	return &pb.Expression_MaskExpression{
		Select:                 &pb.Expression_MaskExpression_StructSelect{StructItems: items},
		MaintainSingularStruct: true,
	}
}

func virtualRead(rows []*pb.Expression_Literal_Struct, schema *pb.NamedStruct) *pb.Rel {
	return &pb.Rel{RelType: &pb.Rel_Read{Read: &pb.ReadRel{
		BaseSchema: schema,
		ReadType: &pb.ReadRel_VirtualTable_{VirtualTable: &pb.ReadRel_VirtualTable{
			Values: rows,
		}},
	}}}
}

// buildDummyScan produces a single row with a placeholder column.
func (b *Builder) buildDummyScan() *pb.Rel {
	row := &pb.Expression_Literal_Struct{Fields: []*pb.Expression_Literal{{
		LiteralType: &pb.Expression_Literal_I32{I32: dummyValue},
	}}}
	schema := &pb.NamedStruct{
		Names: []string{"dummy"},
		Struct: &pb.Type_Struct{
			Types: []*pb.Type{{Kind: &pb.Type_I32_{I32: &pb.Type_I32{
				Nullability: pb.Type_NULLABILITY_REQUIRED,
			}}}},
			Nullability: pb.Type_NULLABILITY_REQUIRED,
		},
	}
	return b.emit("read", virtualRead([]*pb.Expression_Literal_Struct{row}, schema))
}

// buildExpressionGet lowers a list of constant rows to a virtual table.
// Every expression must lower to a literal.
func (b *Builder) buildExpressionGet(g *plan.ExpressionGet) (*pb.Rel, error) {
	schema := &pb.NamedStruct{Struct: &pb.Type_Struct{
		Types:       make([]*pb.Type, len(g.Types)),
		Nullability: pb.Type_NULLABILITY_REQUIRED,
	}}
	for i, typ := range g.Types {
		t, err := buildType(typ, false /* notNull */)
		if err != nil {
			return nil, err
		}
		schema.Names = append(schema.Names, fmt.Sprintf("col%d", i))
		schema.Names = append(schema.Names, depthFirstNames(typ)...)
		schema.Struct.Types[i] = t
	}

	rows := make([]*pb.Expression_Literal_Struct, len(g.Rows))
	for i, row := range g.Rows {
		rows[i] = &pb.Expression_Literal_Struct{Fields: make([]*pb.Expression_Literal, len(row))}
		for j, e := range row {
			expr, err := b.buildScalar(e, 0 /* colOffset */)
			if err != nil {
				return nil, err
			}
			lit, ok := expr.RexType.(*pb.Expression_Literal_)
			if !ok {
				return nil, unimplementedf("unimplemented type of expression to fetch literal: %s", e.ExprType())
			}
			rows[i].Fields[j] = lit.Literal
		}
	}
	return b.emit("read", virtualRead(rows, schema)), nil
}

func (b *Builder) buildCrossProduct(c *plan.CrossProduct) (*pb.Rel, error) {
	left, err := b.buildRelational(c.Left)
	if err != nil {
		return nil, err
	}
	right, err := b.buildRelational(c.Right)
	if err != nil {
		return nil, err
	}
	return b.emit("cross", &pb.Rel{RelType: &pb.Rel_Cross{Cross: &pb.CrossRel{
		Left:  left,
		Right: right,
	}}}), nil
}

var setOps = map[plan.LogicalOp]pb.SetRel_SetOp{
	plan.LogicalUnion:     pb.SetRel_SET_OP_UNION_ALL,
	plan.LogicalExcept:    pb.SetRel_SET_OP_MINUS_PRIMARY,
	plan.LogicalIntersect: pb.SetRel_SET_OP_INTERSECTION_PRIMARY,
}

func (b *Builder) buildSetOp(s *plan.SetOperation) (*pb.Rel, error) {
	op, ok := setOps[s.Kind]
	if !ok {
		return nil, unimplementedf("set operation %s not supported", s.Kind)
	}
	left, err := b.buildRelational(s.Left)
	if err != nil {
		return nil, err
	}
	right, err := b.buildRelational(s.Right)
	if err != nil {
		return nil, err
	}
	return b.emit("set", &pb.Rel{RelType: &pb.Rel_Set{Set: &pb.SetRel{
		Inputs: []*pb.Rel{left, right},
		Op:     op,
	}}}), nil
}

// buildDistinct lowers a DISTINCT over EXCEPT or INTERSECT, which the set
// relation already deduplicates. DISTINCT over anything else is not
// supported.
func (b *Builder) buildDistinct(d *plan.Distinct) (*pb.Rel, error) {
	s, ok := d.Input.(*plan.SetOperation)
	if !ok || (s.Kind != plan.LogicalExcept && s.Kind != plan.LogicalIntersect) {
		return nil, unimplementedf("found unexpected child type in Distinct operator %s", d.Input.Op())
	}
	return b.buildSetOp(s)
}

// tableSchema describes the columns of a written table. notNull reports
// whether a column never holds NULL.
func tableSchema(cols []plan.ColumnDefinition, notNull func(col int) bool) (*pb.NamedStruct, error) {
	schema := &pb.NamedStruct{Struct: &pb.Type_Struct{
		Types:       make([]*pb.Type, len(cols)),
		Nullability: pb.Type_NULLABILITY_REQUIRED,
	}}
	for i, c := range cols {
		schema.Names = append(schema.Names, c.Name)
		schema.Names = append(schema.Names, depthFirstNames(c.Type)...)
		t, err := buildType(c.Type, notNull(i))
		if err != nil {
			return nil, err
		}
		schema.Struct.Types[i] = t
	}
	return schema, nil
}

func (b *Builder) write(
	op pb.WriteRel_WriteOp, schemaName, tableName string, schema *pb.NamedStruct, input *pb.Rel,
) *pb.Rel {
	return b.emit("write", &pb.Rel{RelType: &pb.Rel_Write{Write: &pb.WriteRel{
		WriteType: &pb.WriteRel_NamedTable{NamedTable: &pb.NamedObjectWrite{
			Names: []string{schemaName, tableName},
		}},
		TableSchema: schema,
		Op:          op,
		Input:       input,
	}}})
}

// buildCreateTable lowers CREATE TABLE AS. The declared columns of the new
// table are not nullable.
func (b *Builder) buildCreateTable(c *plan.CreateTable) (*pb.Rel, error) {
	switch len(c.Inputs) {
	case 1:
	case 0:
		return nil, unimplementedf("create table without children not implemented")
	default:
		return nil, errors.AssertionFailedf("create table with %d children is not supported", len(c.Inputs))
	}
	schema, err := tableSchema(c.Info.Columns, func(int) bool { return true })
	if err != nil {
		return nil, err
	}
	input, err := b.buildRelational(c.Inputs[0])
	if err != nil {
		return nil, err
	}
	return b.write(pb.WriteRel_WRITE_OP_CTAS, c.Info.Schema, c.Info.Table, schema, input), nil
}

// buildInsert lowers INSERT ... SELECT into an existing table.
func (b *Builder) buildInsert(ins *plan.Insert) (*pb.Rel, error) {
	if len(ins.Inputs) != 1 {
		return nil, errors.AssertionFailedf("insert with %d children is not supported", len(ins.Inputs))
	}
	notNull := notNullColumns(ins.Table)
	schema, err := tableSchema(ins.Table.ColumnDefinitions(), func(col int) bool { return notNull[col] })
	if err != nil {
		return nil, err
	}
	input, err := b.buildRelational(ins.Inputs[0])
	if err != nil {
		return nil, err
	}
	return b.write(
		pb.WriteRel_WRITE_OP_INSERT, ins.Table.SchemaName(), ins.Table.TableName(), schema, input,
	), nil
}
