// Package space defines hyperparameter sample spaces.
//
// A Space is an ordered set of named dimensions. Each dimension draws from
// one Distribution (uniform, loguniform, normal, lognormal, categorical or
// ordinal) and may carry enable conditions, which decide whether it is
// active for a given sample, and forbid expressions, which reject candidate
// values.
//
//	s := space.New()
//	_, _ = s.Categorical("optimizer", "sgd", "adam")
//	lr, _ := s.LogUniform("optimizer.lr", 1e-4, 1e-1)
//	_ = lr.EnableIf(space.Eq("optimizer", "adam"))
//	samples, err := s.SampleSeed(0, 8)
//
// Conditions evaluate to True, False or Unknown. A comparison is Unknown
// while the dimension it reads is still pending and False once that
// dimension is known to be inactive. The sampler sweeps dimensions in
// insertion order until every dimension is drawn or dropped, so a child may
// be declared before its parent.
//
// Spaces serialize to an ir.Document, and from there to JSON or YAML, with
// dimension order and the integer/float distinction preserved.
package space
