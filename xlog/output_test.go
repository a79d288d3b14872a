package xlog

import "testing"

func TestOutputSplitterWritesInfoAndErrorLines(t *testing.T) {
	var s OutputSplitter

	n, err := s.Write([]byte("time=now level=info msg=hello\n"))
	if err != nil {
		t.Fatalf("write info: %v", err)
	}
	if n == 0 {
		t.Fatal("expected bytes written")
	}

	n, err = s.Write([]byte("time=now level=error msg=boom\n"))
	if err != nil {
		t.Fatalf("write error: %v", err)
	}
	if n == 0 {
		t.Fatal("expected bytes written")
	}
}

func TestFieldsWithFieldDoesNotMutateParent(t *testing.T) {
	base := With(New(DefaultConfig()), map[string]interface{}{"service": "env-indexer"})
	child := base.WithField("run_id", "r1")

	if _, ok := base.fields["run_id"]; ok {
		t.Fatal("WithField must not mutate the parent Fields")
	}
	if child.fields["run_id"] != "r1" {
		t.Fatal("child must carry the new field")
	}
	if child.fields["service"] != "env-indexer" {
		t.Fatal("child must retain parent fields")
	}
}
