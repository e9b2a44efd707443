package units

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// StockLabel is the decoded form of a stock container label such as
// "1 mM IPTG Stock".
type StockLabel struct {
	Concentration Measurement
	Name          string
}

// Every whitespace separated run is one token so that names such as "2xYT"
// survive intact; the quantity is converted after parsing.
var stockLabelLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Word", Pattern: `[^\s]+`},
	{Name: "Whitespace", Pattern: `\s+`},
})

type stockLabelGrammar struct {
	Qty  string   `parser:"@Word"`
	Unit string   `parser:"@Word"`
	Name []string `parser:"@Word*"`
}

var stockLabelParser = participle.MustBuild[stockLabelGrammar](
	participle.Lexer(stockLabelLexer),
	participle.Elide("Whitespace"),
)

// ParseStockLabel reads the leading "<qty> <unit>" pair of a stock label.
func ParseStockLabel(label string) (StockLabel, error) {
	ast, err := stockLabelParser.ParseString("", strings.TrimSpace(label))
	if err != nil {
		return StockLabel{}, &FormatError{Input: label, Reason: fmt.Sprintf("expected <qty> <unit> <name>: %v", err)}
	}
	qty, err := strconv.ParseFloat(ast.Qty, 64)
	if err != nil || math.IsNaN(qty) || math.IsInf(qty, 0) {
		return StockLabel{}, &FormatError{Input: label, Reason: fmt.Sprintf("quantity %q is not a number", ast.Qty)}
	}
	return StockLabel{
		Concentration: New(qty, ast.Unit),
		Name:          strings.Join(ast.Name, " "),
	}, nil
}
