package astbuild

// Expr is the interface for all generated expression nodes.
type Expr interface {
	exprNode()
}

// Ident references a loop iterator or a symbolic parameter.
type Ident struct {
	Name string
}

func (*Ident) exprNode() {}

// IntConst is an integer constant.
type IntConst struct {
	Value int64
}

func (*IntConst) exprNode() {}

// NegExpr negates its operand.
type NegExpr struct {
	X Expr
}

func (*NegExpr) exprNode() {}

// BinOp identifies a binary operation in a generated expression.
type BinOp int

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpFDiv // floor of the quotient, rendered with the floord macro
	OpMin
	OpMax
)

// BinaryExpr is a binary operation on two expressions.
type BinaryExpr struct {
	Op    BinOp
	Left  Expr
	Right Expr
}

func (*BinaryExpr) exprNode() {}

// Node is the interface for all generated AST nodes.
type Node interface {
	astNode()
}

// ForNode is a generated loop over one schedule dimension. Init and
// Bound are inclusive bounds on the iterator; Stride is the increment
// per iteration (zero is treated as one). Annotation carries whatever
// the BeforeFor hook attached and lives exactly as long as the node.
type ForNode struct {
	Iterator   string
	Init       Expr
	Bound      Expr
	Stride     int64
	Body       Node
	Annotation any
}

func (*ForNode) astNode() {}

// UserNode is a statement instance call, such as S0(c0, c1). Annotation
// carries whatever the AtEachDomain hook attached.
type UserNode struct {
	Name       string
	Args       []Expr
	Annotation any
}

func (*UserNode) astNode() {}

// BlockNode sequences its children.
type BlockNode struct {
	Children []Node
}

func (*BlockNode) astNode() {}
