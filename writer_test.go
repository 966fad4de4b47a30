// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package doeff_test

import (
	"slices"
	"testing"

	"code.hybscloud.com/doeff"
)

func TestWriterTell(t *testing.T) {
	comp := doeff.TellWriter("hello", doeff.TellWriter("world", doeff.Return[doeff.Resumed](42)))

	result, logs := doeff.RunWriter[string, int](comp)
	if result != 42 {
		t.Fatalf("got result %d, want 42", result)
	}
	if len(logs) != 2 {
		t.Fatalf("got %d logs, want 2", len(logs))
	}
	if logs[0] != "hello" || logs[1] != "world" {
		t.Fatalf("got logs %v, want [hello world]", logs)
	}
}

func TestWriterExec(t *testing.T) {
	comp := doeff.TellWriter("log1", doeff.TellWriter("log2", doeff.Return[doeff.Resumed]("result")))

	logs := doeff.ExecWriter[string, string](comp)
	if len(logs) != 2 {
		t.Fatalf("got %d logs, want 2", len(logs))
	}
}

func TestWriterNoLogs(t *testing.T) {
	comp := doeff.Return[doeff.Resumed, int](42)

	result, logs := doeff.RunWriter[string, int](comp)
	if result != 42 {
		t.Fatalf("got result %d, want 42", result)
	}
	if len(logs) != 0 {
		t.Fatalf("got %d logs, want 0", len(logs))
	}
}

func TestWriterIntLogs(t *testing.T) {
	comp := doeff.TellWriter(1, doeff.TellWriter(2, doeff.TellWriter(3, doeff.Return[doeff.Resumed](6))))

	result, logs := doeff.RunWriter[int, int](comp)
	if result != 6 {
		t.Fatalf("got result %d, want 6", result)
	}
	if len(logs) != 3 {
		t.Fatalf("got %d logs, want 3", len(logs))
	}
	sum := 0
	for _, n := range logs {
		sum += n
	}
	if sum != 6 {
		t.Fatalf("sum of logs is %d, want 6", sum)
	}
}

func TestExprWriterTell(t *testing.T) {
	comp := doeff.ExprThen(doeff.ExprPerform(doeff.Tell[string]{Value: "hello"}),
		doeff.ExprThen(doeff.ExprPerform(doeff.Tell[string]{Value: "world"}),
			doeff.ExprReturn(42)))

	result, logs := doeff.RunWriterExpr[string, int](comp)
	if result != 42 {
		t.Fatalf("got result %d, want 42", result)
	}
	if len(logs) != 2 {
		t.Fatalf("got %d logs, want 2", len(logs))
	}
	if logs[0] != "hello" || logs[1] != "world" {
		t.Fatalf("got logs %v, want [hello world]", logs)
	}
}

func TestExprWriterExec(t *testing.T) {
	comp := doeff.ExprThen(doeff.ExprPerform(doeff.Tell[string]{Value: "log1"}),
		doeff.ExprThen(doeff.ExprPerform(doeff.Tell[string]{Value: "log2"}),
			doeff.ExprReturn("result")))

	_, logs := doeff.RunWriterExpr[string, string](comp)
	if len(logs) != 2 {
		t.Fatalf("got %d logs, want 2", len(logs))
	}
}

func TestExprWriterNoLogs(t *testing.T) {
	comp := doeff.ExprReturn[int](42)

	result, logs := doeff.RunWriterExpr[string, int](comp)
	if result != 42 {
		t.Fatalf("got result %d, want 42", result)
	}
	if len(logs) != 0 {
		t.Fatalf("got %d logs, want 0", len(logs))
	}
}

func TestExprWriterIntLogs(t *testing.T) {
	comp := doeff.ExprThen(doeff.ExprPerform(doeff.Tell[int]{Value: 1}),
		doeff.ExprThen(doeff.ExprPerform(doeff.Tell[int]{Value: 2}),
			doeff.ExprThen(doeff.ExprPerform(doeff.Tell[int]{Value: 3}),
				doeff.ExprReturn(6))))

	result, logs := doeff.RunWriterExpr[int, int](comp)
	if result != 6 {
		t.Fatalf("got result %d, want 6", result)
	}
	if len(logs) != 3 {
		t.Fatalf("got %d logs, want 3", len(logs))
	}
	sum := 0
	for _, n := range logs {
		sum += n
	}
	if sum != 6 {
		t.Fatalf("sum of logs is %d, want 6", sum)
	}
}

func TestWriterChained(t *testing.T) {
	// Multiple tells in a row
	comp := doeff.TellWriter("a", doeff.TellWriter("b", doeff.TellWriter("c", doeff.Return[doeff.Resumed](struct{}{}))))

	_, logs := doeff.RunWriter[string, struct{}](comp)
	if len(logs) != 3 {
		t.Fatalf("got %d logs, want 3", len(logs))
	}
	expected := []string{"a", "b", "c"}
	for i, log := range slices.All(logs) {
		if log != expected[i] {
			t.Fatalf("log[%d] = %q, want %q", i, log, expected[i])
		}
	}
}

// TestListenWriterWithConcreteType tests that Listen works with concrete type parameters.
// This validates the dispatch pattern fix: Listen[W, A] for any A now implements
// writerOp[W], fixing the type switch limitation where case Listen[W, any] wouldn't
// match Listen[W, int].
func TestListenWriterWithConcreteType(t *testing.T) {
	// Inner computation returns int (concrete type)
	inner := doeff.TellWriter("inner-log", doeff.Return[doeff.Resumed](42))

	// Listen observes the inner computation's output
	comp := doeff.TellWriter("outer-before",
		doeff.Bind(
			doeff.ListenWriter[string, int](inner),
			func(pair doeff.Pair[int, []string]) doeff.Cont[doeff.Resumed, doeff.Pair[int, []string]] {
				return doeff.TellWriter("outer-after", doeff.Return[doeff.Resumed](pair))
			},
		),
	)

	result, logs := doeff.RunWriter[string, doeff.Pair[int, []string]](comp)

	// Check result value
	if result.Fst != 42 {
		t.Fatalf("got result %d, want 42", result.Fst)
	}

	// Check listened output (only inner-log)
	if len(result.Snd) != 1 || result.Snd[0] != "inner-log" {
		t.Fatalf("listened output = %v, want [inner-log]", result.Snd)
	}

	// Check total logs (outer-before, inner-log, outer-after)
	if len(logs) != 3 {
		t.Fatalf("got %d logs, want 3: %v", len(logs), logs)
	}
	expected := []string{"outer-before", "inner-log", "outer-after"}
	for i, log := range slices.All(logs) {
		if log != expected[i] {
			t.Fatalf("log[%d] = %q, want %q", i, log, expected[i])
		}
	}
}

// TestCensorWriterWithConcreteType tests that Censor works with concrete type parameters.
// This validates the dispatch pattern fix for Censor[W, A].
func TestCensorWriterWithConcreteType(t *testing.T) {
	// Inner computation returns string (concrete type)
	inner := doeff.TellWriter("secret", doeff.TellWriter("password", doeff.Return[doeff.Resumed]("result")))

	// Censor redacts certain words
	redact := func(logs []string) []string {
		result := make([]string, len(logs))
		for i, log := range slices.All(logs) {
			if log == "secret" || log == "password" {
				result[i] = "[REDACTED]"
			} else {
				result[i] = log
			}
		}
		return result
	}

	comp := doeff.TellWriter("before",
		doeff.Bind(
			doeff.CensorWriter[string, string](redact, inner),
			func(result string) doeff.Cont[doeff.Resumed, string] {
				return doeff.TellWriter("after", doeff.Return[doeff.Resumed](result))
			},
		),
	)

	result, logs := doeff.RunWriter[string, string](comp)

	// Check result value
	if result != "result" {
		t.Fatalf("got result %q, want %q", result, "result")
	}

	// Check logs are censored
	if len(logs) != 4 {
		t.Fatalf("got %d logs, want 4: %v", len(logs), logs)
	}
	expected := []string{"before", "[REDACTED]", "[REDACTED]", "after"}
	for i, log := range slices.All(logs) {
		if log != expected[i] {
			t.Fatalf("log[%d] = %q, want %q", i, log, expected[i])
		}
	}
}

// TestListenNestedWithConcreteTypes tests nested Listen with different concrete types.
func TestListenNestedWithConcreteTypes(t *testing.T) {
	// Innermost returns bool
	innermost := doeff.TellWriter(1, doeff.Return[doeff.Resumed](true))

	// Middle returns Pair[bool, []int]
	middle := doeff.ListenWriter[int, bool](innermost)

	// Outer returns Pair[Pair[bool, []int], []int]
	outer := doeff.TellWriter(2,
		doeff.Bind(
			middle,
			func(p doeff.Pair[bool, []int]) doeff.Cont[doeff.Resumed, doeff.Pair[bool, []int]] {
				return doeff.TellWriter(3, doeff.Return[doeff.Resumed](p))
			},
		),
	)

	result, logs := doeff.RunWriter[int, doeff.Pair[bool, []int]](outer)

	// Check inner result
	if result.Fst != true {
		t.Fatalf("inner result = %v, want true", result.Fst)
	}

	// Check listened logs (only 1 from innermost)
	if len(result.Snd) != 1 || result.Snd[0] != 1 {
		t.Fatalf("listened = %v, want [1]", result.Snd)
	}

	// Check total logs [2, 1, 3]
	if len(logs) != 3 {
		t.Fatalf("logs = %v, want [2, 1, 3]", logs)
	}
}
