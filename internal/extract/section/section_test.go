package section

import "testing"

const samplePaper = `We study the problem of X in this paper.

1. Introduction

Deep learning has advanced many fields recently. Still some gaps remain.

2. Related Work

Prior work addressed Y but not Z.

3. Method

We propose a method that does A and B.

4. Limitations

Our approach requires significant compute and does not generalize well
to low-resource languages.

5. Future Work

Future work should explore multilingual extensions.

References

Smith et al. 2020.`

func TestSegmentAssignsAbstractBeforeFirstHeading(t *testing.T) {
	sections := Segment(samplePaper)
	if len(sections) == 0 {
		t.Fatal("expected at least one section")
	}
	if sections[0].Type != Abstract {
		t.Fatalf("expected first section to be abstract, got %+v", sections[0])
	}
}

func TestSegmentClassifiesNumberedHeadings(t *testing.T) {
	sections := Segment(samplePaper)
	types := make(map[Type]bool)
	for _, s := range sections {
		types[s.Type] = true
	}
	for _, want := range []Type{Introduction, RelatedWork, Method, Limitations, FutureWork, References} {
		if !types[want] {
			t.Errorf("expected a %s section, got types=%v", want, types)
		}
	}
}

func TestPriorityRanksKeySectionsAscending(t *testing.T) {
	if Priority(Limitations) >= Priority(Introduction) {
		t.Fatalf("expected limitations to outrank introduction, got %d vs %d", Priority(Limitations), Priority(Introduction))
	}
	if Priority(Introduction) >= Priority(References) {
		t.Fatalf("expected references to be lowest priority, got %d vs %d", Priority(Introduction), Priority(References))
	}
}

func TestSegmentDropsEmptySections(t *testing.T) {
	sections := Segment("1. Introduction\n\n2. Method\n\nSome content here.")
	for _, s := range sections {
		if s.Content == "" {
			t.Fatalf("expected no empty-content sections, got %+v", s)
		}
	}
}

func TestSegmentComputesWordCount(t *testing.T) {
	sections := Segment("1. Introduction\n\none two three four")
	var intro Section
	for _, s := range sections {
		if s.Type == Introduction {
			intro = s
		}
	}
	if intro.WordCount != 4 {
		t.Fatalf("expected word_count=4, got %+v", intro)
	}
}

func TestPriorityDefaultsUnknownForUnrecognizedType(t *testing.T) {
	if Priority(Type("not-a-real-type")) != Priority(Unknown) {
		t.Fatal("expected an unrecognized type to default to Unknown's priority")
	}
}
