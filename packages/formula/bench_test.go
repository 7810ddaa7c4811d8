package formula

import (
	"fmt"
	"strconv"
	"strings"
	"testing"
)

func BenchmarkSheetPopulation(b *testing.B) {
	for i := 0; i < b.N; i++ {
		s := NewSheet()
		for row := 1; row <= 500; row++ {
			s.AddFormula(fmt.Sprintf("x%d * %d", row%26, row))
		}
	}
}

func BenchmarkLongFormula(b *testing.B) {
	src := strings.TrimSuffix(strings.Repeat("x+", 20000), "+")
	for i := 0; i < b.N; i++ {
		s := NewSheet()
		s.AddFormula(src)
	}
}

func BenchmarkResultChain(b *testing.B) {
	s := NewSheet()
	s.AddFormula("1")
	for i := 1; i < 100; i++ {
		s.AddFormula(fmt.Sprintf("r%d+1", i))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Evaluate()
	}
}

func BenchmarkWideFanOut(b *testing.B) {
	s := NewSheet()
	s.AddFormula("x")
	for i := 2; i <= 500; i++ {
		s.AddFormula("r1*2")
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = s.SetBinding("x", strconv.Itoa(i))
		s.Evaluate()
	}
}

func BenchmarkComplexNestedFormulas(b *testing.B) {
	s := NewSheet(WithDegree(true))
	s.AddFormula("max(a, b, c) / min(a, b, c) + hypot(a, b)")
	s.AddFormula("round(sqrt(r1) * PI * 100) / 100")
	s.AddFormula("atan2(sin(r2), cos(r2)) ^ 2 % 7")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Evaluate()
	}
}

func BenchmarkRandom(b *testing.B) {
	s := NewSheet()
	for i := 1; i <= 50; i++ {
		s.AddFormula("random()")
	}
	for i := 1; i <= 50; i++ {
		s.AddFormula(fmt.Sprintf("r%d*100", i))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Evaluate()
	}
}

func BenchmarkManySmallFormulas(b *testing.B) {
	s := NewSheet()
	for row := 0; row < 100; row++ {
		base := row * 4
		s.AddFormula(strconv.Itoa(row))
		s.AddFormula(fmt.Sprintf("r%d*2", base+1))
		s.AddFormula(fmt.Sprintf("r%d+r%d", base+2, base+1))
		s.AddFormula(fmt.Sprintf("r%d/2", base+3))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Evaluate()
	}
}

func BenchmarkSharedPrograms(b *testing.B) {
	s := NewSheet()
	for row := 0; row < 500; row++ {
		s.AddFormula("a * b + c")
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Evaluate()
	}
}

func BenchmarkUpdateFormula(b *testing.B) {
	s := NewSheet()
	for row := 0; row < 100; row++ {
		s.AddFormula(fmt.Sprintf("v%d + r%d", row, row))
	}
	id := s.Formulas()[50].ID

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = s.UpdateFormula(id, fmt.Sprintf("w%d * 2", i%10))
		s.Evaluate()
	}
}

func BenchmarkDeepNesting(b *testing.B) {
	expr := strings.Repeat("(", 200) + "1" + strings.Repeat(")", 200)
	ctx := BuildContext(Symbols(false), nil, nil, nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Evaluate(expr, ctx)
	}
}

func BenchmarkExtractVariables(b *testing.B) {
	table := Symbols(false)
	var sb strings.Builder
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&sb, "sin(v%d) + r%d * PI + ", i, i)
	}
	sb.WriteString("0")
	expr := sb.String()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ExtractVariables(expr, table)
	}
}

func BenchmarkDependents(b *testing.B) {
	s := NewSheet()
	first := s.AddFormula("x")
	for i := 1; i < 200; i++ {
		s.AddFormula(fmt.Sprintf("r%d + r1", i))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.Dependents(first.ID)
	}
}
