package coverage

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/Masterminds/semver"
)

// astNode is a generically-decoded AST node: every field walkNode's dispatch needs to read, kept as raw JSON so
// each specific node kind's dispatch logic decides how to interpret and recurse into it. Fields
// are ordered in the struct to match their syntactic order (left-before-right, condition-before-branches, and so
// on) because map[string]interface{} iteration order is not stable and several node kinds install branch/location
// features at each alternative in source order.
type astNode struct {
	NodeType string `json:"nodeType"`
	Src      string `json:"src"`
	Name     string `json:"name"`
	Operator string `json:"operator"`

	LeftExpression  json.RawMessage `json:"leftExpression"`
	RightExpression json.RawMessage `json:"rightExpression"`

	LeftHandSide  json.RawMessage `json:"leftHandSide"`
	RightHandSide json.RawMessage `json:"rightHandSide"`
	SubExpression json.RawMessage `json:"subExpression"`

	Condition       json.RawMessage `json:"condition"`
	TrueExpression  json.RawMessage `json:"trueExpression"`
	FalseExpression json.RawMessage `json:"falseExpression"`
	TrueBody        json.RawMessage `json:"trueBody"`
	FalseBody       json.RawMessage `json:"falseBody"`

	Body json.RawMessage `json:"body"`

	Expression json.RawMessage   `json:"expression"`
	Arguments  []json.RawMessage `json:"arguments"`
	Cases      []json.RawMessage `json:"cases"`

	Nodes []json.RawMessage `json:"nodes"`

	Parameters       json.RawMessage   `json:"parameters"`
	ReturnParameters json.RawMessage   `json:"returnParameters"`
	ReturnVariables  []json.RawMessage `json:"returnVariables"`

	Statements   []json.RawMessage `json:"statements"`
	Declarations []json.RawMessage `json:"declarations"`
	InitialValue json.RawMessage   `json:"initialValue"`
	Value        json.RawMessage   `json:"value"`
}

// parseSrc parses an AST node's compact "start:length:fileIndex" location string.
func parseSrc(src string) (start int, length int, fileIndex int) {
	fields := strings.SplitN(src, ":", 3)
	if len(fields) > 0 {
		start, _ = strconv.Atoi(fields[0])
	}
	if len(fields) > 1 {
		length, _ = strconv.Atoi(fields[1])
	}
	if len(fields) > 2 {
		fileIndex, _ = strconv.Atoi(fields[2])
	}
	return start, length, fileIndex
}

// decodeNode decodes one AST node from raw JSON. A nil or empty message decodes to nil.
func decodeNode(raw json.RawMessage) *astNode {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var n astNode
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil
	}
	return &n
}

// decodeNodeList decodes a JSON array of nodes, skipping any that fail to decode.
func decodeNodeList(raw []json.RawMessage) []*astNode {
	nodes := make([]*astNode, 0, len(raw))
	for _, r := range raw {
		if n := decodeNode(r); n != nil {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// walkAST walks the AST rooted at root, installing branch/function/statement features into table and returning
// any diagnostics for unrecognized node kinds encountered along the way. compilerVersion, when known, gates the
// diagnostic issued for Yul-IR-only node kinds; it may be nil.
func walkAST(table *SyntaxTable, offsetToPosition []Position, root *astNode, path string, compilerVersion *semver.Version) []error {
	var diagnostics []error
	if root != nil {
		walkNode(table, offsetToPosition, root, path, compilerVersion, &diagnostics)
	}
	return diagnostics
}

func walkNode(table *SyntaxTable, pos []Position, node *astNode, path string, compilerVersion *semver.Version, diagnostics *[]error) {
	if node == nil {
		return
	}
	start, length, _ := parseSrc(node.Src)

	switch node.NodeType {
	case "BinaryOperation":
		left := decodeNode(node.LeftExpression)
		right := decodeNode(node.RightExpression)
		if node.Operator == "&&" || node.Operator == "||" {
			table.installBranch(pos, "BinaryOperation", start, []*astNode{left, right})
		} else {
			table.installStatement(pos, start, length, false)
		}
		walkNode(table, pos, left, path, compilerVersion, diagnostics)
		walkNode(table, pos, right, path, compilerVersion, diagnostics)

	case "Conditional":
		cond := decodeNode(node.Condition)
		trueExpr := decodeNode(node.TrueExpression)
		falseExpr := decodeNode(node.FalseExpression)
		table.installBranch(pos, "if", start, []*astNode{trueExpr, falseExpr})
		walkNode(table, pos, cond, path, compilerVersion, diagnostics)
		walkNode(table, pos, trueExpr, path, compilerVersion, diagnostics)
		walkNode(table, pos, falseExpr, path, compilerVersion, diagnostics)

	case "IfStatement":
		cond := decodeNode(node.Condition)
		trueBody := decodeNode(node.TrueBody)
		falseBody := decodeNode(node.FalseBody)
		alts := nonNil(trueBody, falseBody)
		table.installBranch(pos, "if", start, alts)
		walkNode(table, pos, cond, path, compilerVersion, diagnostics)
		for _, alt := range alts {
			walkNode(table, pos, alt, path, compilerVersion, diagnostics)
		}

	case "YulIf":
		body := decodeNode(node.Body)
		cond := decodeNode(node.Condition)
		table.installBranch(pos, "if", start, []*astNode{body, cond})
		walkNode(table, pos, body, path, compilerVersion, diagnostics)
		walkNode(table, pos, cond, path, compilerVersion, diagnostics)

	case "YulSwitch":
		expr := decodeNode(node.Expression)
		cases := decodeNodeList(node.Cases)
		table.installBranch(pos, "switch", start, cases)
		walkNode(table, pos, expr, path, compilerVersion, diagnostics)
		for _, c := range cases {
			walkNode(table, pos, c, path, compilerVersion, diagnostics)
		}

	case "ContractDefinition":
		table.installStatement(pos, start, length, true)
		for _, child := range decodeNodeList(node.Nodes) {
			walkNode(table, pos, child, path, compilerVersion, diagnostics)
		}

	case "FunctionDefinition", "ModifierDefinition", "YulFunctionDefinition":
		body := decodeNode(node.Body)
		if body != nil {
			id := table.allocFunctionID()
			table.FnMap[id] = FunctionDescriptor{
				Name: node.Name,
				Line: table.lineOf(start, pos),
				Loc:  table.locationRange(start, length, pos),
				Skip: false,
			}
			table.installFeature(start, length, Feature{Kind: FeatureFunction, FunctionID: id})
		} else {
			table.installStatement(pos, start, length, true)
		}

		for _, child := range functionChildren(node) {
			walkNode(table, pos, child, path, compilerVersion, diagnostics)
		}
		walkNode(table, pos, body, path, compilerVersion, diagnostics)

	case "Assignment", "IndexAccess", "MemberAccess", "Return", "Break", "Continue", "EmitStatement",
		"Identifier", "NewExpression", "RevertStatement", "PlaceholderStatement", "UnaryOperation",
		"VariableDeclaration", "YulAssignment", "YulBreak", "YulExpressionStatement", "YulIdentifier",
		"YulLeave", "YulTypedName", "YulVariableDeclaration":
		table.installStatement(pos, start, length, false)
		for _, child := range operandChildren(node) {
			walkNode(table, pos, child, path, compilerVersion, diagnostics)
		}

	case "ParameterList":
		table.installStatement(pos, start, length, true)

	case "ElementaryTypeNameExpression", "EnumDefinition", "EventDefinition", "ErrorDefinition",
		"StructDefinition", "FunctionCallOptions", "Literal", "YulLiteral":
		table.installStatement(pos, start, length, true)

	case "FunctionCall", "YulFunctionCall", "Block", "UncheckedBlock", "YulBlock", "InlineAssembly",
		"ExpressionStatement", "ForStatement", "YulForLoop", "TryStatement", "TryCatchClause",
		"TupleExpression", "VariableDeclarationStatement", "YulCase", "SourceUnit":
		for _, child := range structuralChildren(node) {
			walkNode(table, pos, child, path, compilerVersion, diagnostics)
		}

	case "ImportDirective", "PragmaDirective":
		// No feature, no children.

	default:
		isYul := strings.HasPrefix(node.NodeType, "Yul")
		if isYul && compilerVersion != nil && predatesYulIR(compilerVersion) {
			*diagnostics = append(*diagnostics, &UnexpectedYulNodeWarning{
				Path: path, NodeType: node.NodeType, CompilerVersion: compilerVersion.String(),
			})
		} else {
			*diagnostics = append(*diagnostics, &UnknownAstNodeWarning{Path: path, NodeType: node.NodeType})
		}
	}
}

// installBranch allocates a branch id, records its descriptor, and installs one Branch feature at each non-nil
// alternative's start byte, not at the branch node's own start.
func (t *SyntaxTable) installBranch(pos []Position, branchType string, ownStart int, alternatives []*astNode) {
	id := t.allocBranchID()

	locations := make([]LocationRange, len(alternatives))
	for i, alt := range alternatives {
		if alt == nil {
			continue
		}
		altStart, altLength, _ := parseSrc(alt.Src)
		locations[i] = t.locationRange(altStart, altLength, pos)
	}
	t.BranchMap[id] = BranchDescriptor{Line: t.lineOf(ownStart, pos), Type: branchType, Locations: locations}

	for i, alt := range alternatives {
		if alt == nil {
			continue
		}
		altStart, altLength, _ := parseSrc(alt.Src)
		t.installFeature(altStart, altLength, Feature{Kind: FeatureBranch, BranchID: id, AltIndex: i})
	}
}

func (t *SyntaxTable) installStatement(pos []Position, start int, length int, skip bool) {
	id := t.allocStatementID()
	t.StatementMap[id] = StatementDescriptor{
		Start: t.positionOf(start, pos),
		End:   t.positionOf(start+length, pos),
		Skip:  skip,
	}
	t.installFeature(start, length, Feature{Kind: FeatureStatement, StatementID: id})
}

func nonNil(nodes ...*astNode) []*astNode {
	out := make([]*astNode, 0, len(nodes))
	for _, n := range nodes {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

// functionChildren gathers a FunctionDefinition/ModifierDefinition/YulFunctionDefinition's parameter and
// return-variable children. Solidity wraps these in a ParameterList node; Yul functions list YulTypedName nodes
// directly, so both a single-object and an array shape are tolerated.
func functionChildren(node *astNode) []*astNode {
	var children []*astNode
	if n := decodeNode(node.Parameters); n != nil {
		children = append(children, n)
	} else {
		children = append(children, decodeArrayField(node.Parameters)...)
	}
	if n := decodeNode(node.ReturnParameters); n != nil {
		children = append(children, n)
	}
	children = append(children, decodeNodeList(node.ReturnVariables)...)
	return children
}

func decodeArrayField(raw json.RawMessage) []*astNode {
	if len(raw) == 0 {
		return nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	return decodeNodeList(list)
}

// operandChildren gathers a statement-level node's operand subtrees under whichever field name its kind carries:
// binary-style left/right expressions, an assignment's left/right hand sides, a unary operand, a wrapped
// expression or condition, and a declaration's initializer value. A field absent from a given node kind decodes
// to nil and contributes nothing, so branches and statements nested in assignment right-hand sides, unary
// operands, and initializers are all projected.
func operandChildren(node *astNode) []*astNode {
	return nonNil(
		decodeNode(node.Expression),
		decodeNode(node.LeftExpression),
		decodeNode(node.RightExpression),
		decodeNode(node.LeftHandSide),
		decodeNode(node.RightHandSide),
		decodeNode(node.SubExpression),
		decodeNode(node.Condition),
		decodeNode(node.Value),
	)
}

// structuralChildren walks the pure-structure node kinds that install no feature of their own, in source order:
// nodes/statements, a declaration statement's declarations and initial value, a loop's condition, a body, a call's
// target expression and arguments, and switch cases, whichever are present.
func structuralChildren(node *astNode) []*astNode {
	children := decodeNodeList(node.Nodes)
	children = append(children, decodeNodeList(node.Statements)...)
	children = append(children, decodeNodeList(node.Declarations)...)
	if n := decodeNode(node.InitialValue); n != nil {
		children = append(children, n)
	}
	if n := decodeNode(node.Condition); n != nil {
		children = append(children, n)
	}
	if n := decodeNode(node.Body); n != nil {
		children = append(children, n)
	}
	if n := decodeNode(node.Expression); n != nil {
		children = append(children, n)
	}
	children = append(children, decodeNodeList(node.Arguments)...)
	children = append(children, decodeNodeList(node.Cases)...)
	return children
}
