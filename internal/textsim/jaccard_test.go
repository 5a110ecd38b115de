package textsim

import "testing"

func TestJaccard_HighForOverlappingQueries(t *testing.T) {
	sim := Jaccard("find the Run function", "find the Run function call")
	if sim <= 0.6 {
		t.Fatalf("expected high similarity, got %f", sim)
	}
}

func TestJaccard_LowForUnrelatedQueries(t *testing.T) {
	sim := Jaccard("find the Run function", "delete repo lifecycle")
	if sim >= 0.3 {
		t.Fatalf("expected low similarity, got %f", sim)
	}
}

func TestJaccard_IdenticalAfterNormalization(t *testing.T) {
	sim := Jaccard("Where is Foo_Bar defined?", "where is foo_bar defined")
	if sim != 1 {
		t.Fatalf("expected exact match after normalization, got %f", sim)
	}
}

func TestJaccard_PunctuationIgnored(t *testing.T) {
	sim := Jaccard("hello, world!", "hello world")
	if sim != 1 {
		t.Fatalf("expected punctuation to be stripped, got %f", sim)
	}
}
