package interpreter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantos-systems/workorder-engine/internal/recipe"
)

type scriptedProbe struct {
	responses map[string]QueryResult
	errs      map[string]error
	queries   []string
}

func (p *scriptedProbe) Query(_ context.Context, sql string) (QueryResult, error) {
	p.queries = append(p.queries, sql)
	if err, ok := p.errs[sql]; ok {
		return QueryResult{}, err
	}
	if res, ok := p.responses[sql]; ok {
		return res, nil
	}
	return QueryResult{}, nil
}

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

func mustRecipe(t *testing.T, r *recipe.Recipe) *recipe.Recipe {
	t.Helper()
	errs := recipe.ValidateDomain(r)
	require.Empty(t, errs)
	return r
}

func updateTelcoRecipe() *recipe.Recipe {
	return &recipe.Recipe{
		WorkOrderType: "update_telco_customer",
		Description:   "change a customer's monthly charge",
		Steps: []recipe.Step{
			{
				StepNumber: 1, Operation: recipe.KindQuery,
				Table: "telco_customer", Where: "customerID = {customerID}",
				OutputFields: []string{"customerID"},
			},
			{
				StepNumber: 2, Operation: recipe.KindGenerateDML,
				DMLType: recipe.DMLUpdate, Table: "telco_customer",
				Set:   map[string]string{"MonthlyCharges": "{new_price}"},
				Where: "customerID = {customerID}",
			},
		},
	}
}

// Test_Run_UpdateTelcoCustomer drives the telco price-change
// recipe end to end: one probe row, then one UPDATE in both literal and
// parameterized form.
func Test_Run_UpdateTelcoCustomer(t *testing.T) {
	t.Parallel()
	r := mustRecipe(t, updateTelcoRecipe())
	probe := &scriptedProbe{responses: map[string]QueryResult{
		"SELECT customerID FROM telco_customer WHERE customerID = '0002-ORFBO'": {
			Columns: []string{"customerID"}, Rows: [][]any{{"0002-ORFBO"}}, RowCount: 1,
		},
	}}

	outcome := Run(context.Background(), r,
		map[string]any{"customerID": "0002-ORFBO", "new_price": 80},
		nil, probe, fixedClock{}, 10*time.Second)

	require.Equal(t, OutcomeCompleted, outcome.Kind)
	require.Len(t, outcome.DML, 1)
	rec := outcome.DML[0]
	assert.Equal(t, recipe.DMLUpdate, rec.Kind)
	assert.Equal(t, "telco_customer", rec.Table)
	assert.Equal(t, "UPDATE telco_customer SET MonthlyCharges = 80 WHERE customerID = '0002-ORFBO'", rec.RenderedSQL)
	assert.Equal(t, "UPDATE telco_customer SET MonthlyCharges = ? WHERE customerID = ?", rec.TemplateSQL)
	require.Len(t, rec.Parameters, 2)
	assert.Equal(t, "new_price", rec.Parameters[0].Name)
	assert.Equal(t, 80, rec.Parameters[0].Value)
	assert.Equal(t, "customerID", rec.Parameters[1].Name)
	assert.Equal(t, "0002-ORFBO", rec.Parameters[1].Value)
}

// Test_Run_InjectionSafety feeds a hostile customerID through the
// whole run: the literal SQL must double the quote, the parameter must stay
// raw.
func Test_Run_InjectionSafety(t *testing.T) {
	t.Parallel()
	r := mustRecipe(t, updateTelcoRecipe())
	malicious := "x'; DROP TABLE users;--"
	probe := &scriptedProbe{responses: map[string]QueryResult{
		"SELECT customerID FROM telco_customer WHERE customerID = 'x''; DROP TABLE users;--'": {
			Columns: []string{"customerID"}, Rows: [][]any{{malicious}}, RowCount: 1,
		},
	}}

	outcome := Run(context.Background(), r,
		map[string]any{"customerID": malicious, "new_price": 80},
		nil, probe, fixedClock{}, 10*time.Second)

	require.Equal(t, OutcomeCompleted, outcome.Kind)
	rec := outcome.DML[0]
	assert.Contains(t, rec.RenderedSQL, "'x''; DROP TABLE users;--'")
	assert.Equal(t, malicious, rec.Parameters[1].Value)
}

func cancelMarineOrderRecipe() *recipe.Recipe {
	return &recipe.Recipe{
		WorkOrderType: "cancel_marine_order",
		Description:   "cancel a marine order",
		Steps: []recipe.Step{
			{
				StepNumber: 1, Operation: recipe.KindQuery,
				Table: "r_receipt_order", Where: "receipt_order_number = {receipt_order_number}",
				OutputFields: []string{"marine_order_id"},
				OnSuccess: &recipe.Branch{
					Condition: "{marine_order_id} != null", NextStep: recipe.Target(2), ElseStep: recipe.Target(10),
				},
				OnFailure: &recipe.Branch{NextStep: recipe.Target(11)},
			},
			{
				StepNumber: 2, Operation: recipe.KindQuery,
				Table: "r_electronic_container_order", Where: "marine_order_id = {marine_order_id}",
				OutputFields: []string{"id", "status"},
				OnSuccess: &recipe.Branch{
					Condition: "{id} != null", NextStep: recipe.Target(3), ElseStep: recipe.Target(10),
				},
			},
			{
				StepNumber: 3, Operation: recipe.KindGenerateDML,
				DMLType: recipe.DMLUpdate, Table: "r_electronic_container_order",
				Set: map[string]string{"status": "'9'"}, Where: "id = {id}",
			},
			{
				StepNumber: 4, Operation: recipe.KindGenerateDML,
				DMLType: recipe.DMLInsert, Table: "t_check_status_change",
				Values: map[string]string{"order_id": "{id}", "new_status": "'9'"},
			},
			{
				StepNumber: 5, Operation: recipe.KindGenerateDML,
				DMLType: recipe.DMLUpdate, Table: "t_marine_order",
				Set: map[string]string{"status": "'9'"}, Where: "marine_order_id = {marine_order_id}",
			},
			{StepNumber: 10, Operation: recipe.KindReturnError, Message: "入库单未关联海运单，入库单号: {receipt_order_number}"},
			{StepNumber: 11, Operation: recipe.KindReturnError, Message: "未找到入库单，入库单号: {receipt_order_number}"},
		},
	}
}

// Test_Run_CancelMarineOrderHappyPath walks both probes and all
// three DML steps in order.
func Test_Run_CancelMarineOrderHappyPath(t *testing.T) {
	t.Parallel()
	r := mustRecipe(t, cancelMarineOrderRecipe())
	probe := &scriptedProbe{responses: map[string]QueryResult{
		"SELECT marine_order_id FROM r_receipt_order WHERE receipt_order_number = 'R1'": {
			Columns: []string{"marine_order_id"}, Rows: [][]any{{"M1"}}, RowCount: 1,
		},
		"SELECT id, status FROM r_electronic_container_order WHERE marine_order_id = 'M1'": {
			Columns: []string{"id", "status"}, Rows: [][]any{{"E1", "0"}}, RowCount: 1,
		},
	}}

	outcome := Run(context.Background(), r,
		map[string]any{"receipt_order_number": "R1"}, nil, probe, fixedClock{}, 10*time.Second)

	require.Equal(t, OutcomeCompleted, outcome.Kind)
	require.Len(t, outcome.DML, 3)
	assert.Equal(t, recipe.DMLUpdate, outcome.DML[0].Kind)
	assert.Equal(t, recipe.DMLInsert, outcome.DML[1].Kind)
	assert.Equal(t, recipe.DMLUpdate, outcome.DML[2].Kind)
}

// Test_Run_NoMarineOrder takes the else branch on a null
// marine_order_id and surfaces the recipe's own error message.
func Test_Run_NoMarineOrder(t *testing.T) {
	t.Parallel()
	r := mustRecipe(t, cancelMarineOrderRecipe())
	probe := &scriptedProbe{responses: map[string]QueryResult{
		"SELECT marine_order_id FROM r_receipt_order WHERE receipt_order_number = 'R1'": {
			Columns: []string{"marine_order_id"}, Rows: [][]any{{nil}}, RowCount: 1,
		},
	}}

	outcome := Run(context.Background(), r,
		map[string]any{"receipt_order_number": "R1"}, nil, probe, fixedClock{}, 10*time.Second)

	require.Equal(t, OutcomeUserError, outcome.Kind)
	assert.Equal(t, "入库单未关联海运单，入库单号: R1", outcome.Message)
}

// Test_Run_ReceiptNotFound takes the on_failure branch when the
// first probe returns no rows.
func Test_Run_ReceiptNotFound(t *testing.T) {
	t.Parallel()
	r := mustRecipe(t, cancelMarineOrderRecipe())
	probe := &scriptedProbe{responses: map[string]QueryResult{
		"SELECT marine_order_id FROM r_receipt_order WHERE receipt_order_number = 'R1'": {
			RowCount: 0,
		},
	}}

	outcome := Run(context.Background(), r,
		map[string]any{"receipt_order_number": "R1"}, nil, probe, fixedClock{}, 10*time.Second)

	require.Equal(t, OutcomeUserError, outcome.Kind)
	assert.Equal(t, "未找到入库单，入库单号: R1", outcome.Message)
}

func Test_Run_QueryZeroRowsNoOnFailure_IsFatal(t *testing.T) {
	t.Parallel()
	r := mustRecipe(t, &recipe.Recipe{
		WorkOrderType: "x", Description: "d",
		Steps: []recipe.Step{
			{StepNumber: 1, Operation: recipe.KindQuery, Table: "t1", Where: "x = {x}", OutputFields: []string{"x"}},
			{StepNumber: 2, Operation: recipe.KindGenerateDML, DMLType: recipe.DMLDelete, Table: "t1", Where: "x = {x}"},
		},
	})
	probe := &scriptedProbe{}

	outcome := Run(context.Background(), r, map[string]any{"x": "v"}, nil, probe, fixedClock{}, time.Second)

	require.Equal(t, OutcomeEngineError, outcome.Kind)
	assert.Equal(t, ErrorKindQueryFailed, outcome.ErrorKind)
}

func Test_Run_AmbiguousQueryWarnsAndTakesFirstRow(t *testing.T) {
	t.Parallel()
	r := mustRecipe(t, &recipe.Recipe{
		WorkOrderType: "x", Description: "d",
		Steps: []recipe.Step{
			{StepNumber: 1, Operation: recipe.KindQuery, Table: "t1", Where: "x = {x}", OutputFields: []string{"y"}},
			{StepNumber: 2, Operation: recipe.KindGenerateDML, DMLType: recipe.DMLDelete, Table: "t1", Where: "y = {y}"},
		},
	})
	probe := &scriptedProbe{responses: map[string]QueryResult{
		"SELECT y FROM t1 WHERE x = 'v'": {
			Columns: []string{"y"}, Rows: [][]any{{"first"}, {"second"}}, RowCount: 2,
		},
	}}

	outcome := Run(context.Background(), r, map[string]any{"x": "v"}, nil, probe, fixedClock{}, time.Second)

	require.Equal(t, OutcomeCompleted, outcome.Kind)
	require.Len(t, outcome.Trace, 2)
	assert.Contains(t, outcome.Trace[0].Decision, "ambiguous")
	assert.Contains(t, outcome.DML[0].RenderedSQL, "'first'")
}

func Test_Run_PureParameterSubstitutedDML_NoQuerySteps(t *testing.T) {
	t.Parallel()
	r := mustRecipe(t, &recipe.Recipe{
		WorkOrderType: "x", Description: "d",
		Steps: []recipe.Step{
			{
				StepNumber: 1, Operation: recipe.KindGenerateDML,
				DMLType: recipe.DMLInsert, Table: "t1",
				Values: map[string]string{"a": "{a}"},
			},
		},
	})

	outcome := Run(context.Background(), r, map[string]any{"a": "v"}, nil, &scriptedProbe{}, fixedClock{}, time.Second)

	require.Equal(t, OutcomeCompleted, outcome.Kind)
	require.Len(t, outcome.DML, 1)
	assert.Equal(t, "INSERT INTO t1 (a) VALUES ('v')", outcome.DML[0].RenderedSQL)
}

func Test_Run_OnlyReturnErrorReachable(t *testing.T) {
	t.Parallel()
	r := mustRecipe(t, &recipe.Recipe{
		WorkOrderType: "x", Description: "d",
		Steps: []recipe.Step{
			{StepNumber: 1, Operation: recipe.KindReturnError, Message: "nope"},
		},
	})

	outcome := Run(context.Background(), r, nil, nil, &scriptedProbe{}, fixedClock{}, time.Second)

	require.Equal(t, OutcomeUserError, outcome.Kind)
	assert.Equal(t, "nope", outcome.Message)
}

func Test_Run_CyclicRecipeHitsIterationLimit(t *testing.T) {
	t.Parallel()
	r := mustRecipe(t, &recipe.Recipe{
		WorkOrderType: "x", Description: "d",
		Steps: []recipe.Step{
			{StepNumber: 1, Operation: recipe.KindGenerateDML, DMLType: recipe.DMLInsert, Table: "t1", Values: map[string]string{"a": "1"}, NextStep: recipe.Target(2)},
			{StepNumber: 2, Operation: recipe.KindGenerateDML, DMLType: recipe.DMLInsert, Table: "t1", Values: map[string]string{"a": "1"}, NextStep: recipe.Target(1)},
		},
	})

	outcome := Run(context.Background(), r, nil, nil, &scriptedProbe{}, fixedClock{}, time.Second)

	require.Equal(t, OutcomeEngineError, outcome.Kind)
	assert.Equal(t, ErrorKindIterationLimit, outcome.ErrorKind)
	assert.LessOrEqual(t, len(outcome.Trace), MaxIterations)
}

func Test_Run_MatcherParamsWinOnKeyCollision(t *testing.T) {
	t.Parallel()
	r := mustRecipe(t, &recipe.Recipe{
		WorkOrderType: "x", Description: "d",
		Steps: []recipe.Step{
			{StepNumber: 1, Operation: recipe.KindGenerateDML, DMLType: recipe.DMLInsert, Table: "t1", Values: map[string]string{"a": "{a}"}},
		},
	})

	outcome := Run(context.Background(), r,
		map[string]any{"a": "from-matcher"}, map[string]any{"a": "from-upstream"},
		&scriptedProbe{}, fixedClock{}, time.Second)

	require.Equal(t, OutcomeCompleted, outcome.Kind)
	assert.Contains(t, outcome.DML[0].RenderedSQL, "from-matcher")
}

func Test_Run_CancelledContext(t *testing.T) {
	t.Parallel()
	r := mustRecipe(t, updateTelcoRecipe())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := Run(ctx, r, map[string]any{"customerID": "x", "new_price": 1}, nil, &scriptedProbe{}, fixedClock{}, time.Second)

	require.Equal(t, OutcomeEngineError, outcome.Kind)
	assert.Equal(t, ErrorKindCancelled, outcome.ErrorKind)
}
