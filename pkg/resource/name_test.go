package resource

import "testing"

func TestNameCasings(t *testing.T) {
	n, err := NewName("datasetImportJob")
	if err != nil {
		t.Fatalf("failed to create name: %v", err)
	}
	if n.Camel() != "datasetImportJob" {
		t.Errorf("expected camel datasetImportJob, got %s", n.Camel())
	}
	if n.Snake() != "dataset_import_job" {
		t.Errorf("expected snake dataset_import_job, got %s", n.Snake())
	}
	if n.Dash() != "dataset-import-job" {
		t.Errorf("expected dash dataset-import-job, got %s", n.Dash())
	}
}

func TestNameValidation(t *testing.T) {
	if _, err := NewName("DatasetGroup"); err == nil {
		t.Error("expected error for upper-led name")
	}
	if _, err := NewName("dataset_group"); err == nil {
		t.Error("expected error for non-alpha name")
	}
	if _, err := NewName(""); err == nil {
		t.Error("expected error for empty name")
	}
}

func TestSnakeToCamel(t *testing.T) {
	if got := SnakeToCamel("batch_inference_job"); got != "batchInferenceJob" {
		t.Errorf("expected batchInferenceJob, got %s", got)
	}
	if got := CamelToSnake("batchInferenceJob"); got != "batch_inference_job" {
		t.Errorf("expected batch_inference_job, got %s", got)
	}
}

func TestRegistryTraits(t *testing.T) {
	solution := MustLookup(KindSolution)
	if !solution.HasSoftLimit {
		t.Error("solution should have a soft limit")
	}
	if solution.Parent != KindDatasetGroup {
		t.Errorf("solution parent should be datasetGroup, got %s", solution.Parent)
	}

	campaign := MustLookup(KindCampaign)
	if !campaign.SupportsUpdate {
		t.Error("campaign should support update")
	}

	schema := MustLookup(KindSchema)
	if schema.HasStatus {
		t.Error("schema has no lifecycle status")
	}

	importJob := MustLookup(KindDatasetImportJob)
	if importJob.HasStableID {
		t.Error("dataset import jobs are discovered by listing, not by derived id")
	}
	if !importJob.IsExcludedField("jobName") {
		t.Error("jobName should be excluded from comparison for import jobs")
	}
	if !importJob.IsExcludedField("maxAge") {
		t.Error("workflow fields should always be excluded")
	}

	dataset := MustLookup(KindDataset)
	if !dataset.IsCaseInsensitiveField("datasetType") {
		t.Error("datasetType should compare case-insensitively")
	}

	if _, err := Lookup(Kind("mysteryResource")); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestARN(t *testing.T) {
	p := Partition{Partition: "aws", Region: "us-west-2", Account: "123456789012"}

	arn := p.ARN(KindDatasetGroup, "media")
	want := "arn:aws:personalize:us-west-2:123456789012:dataset-group/media"
	if arn != want {
		t.Errorf("expected %s, got %s", want, arn)
	}

	sv := p.SolutionVersionARN("ranking", "a1b2c3")
	wantSV := "arn:aws:personalize:us-west-2:123456789012:solution/ranking/a1b2c3"
	if sv != wantSV {
		t.Errorf("expected %s, got %s", wantSV, sv)
	}

	if got := SolutionOf(sv); got != "arn:aws:personalize:us-west-2:123456789012:solution/ranking" {
		t.Errorf("unexpected solution arn %s", got)
	}
}

func TestTree(t *testing.T) {
	p := Partition{Partition: "aws", Region: "us-west-2", Account: "123456789012"}
	dsg := Element{Kind: KindDatasetGroup, ARN: p.ARN(KindDatasetGroup, "media")}
	sol := Element{Kind: KindSolution, ARN: p.ARN(KindSolution, "ranking")}
	camp := Element{Kind: KindCampaign, ARN: p.ARN(KindCampaign, "ranking-live")}

	tree := NewTree()
	if err := tree.Add(dsg, sol); err != nil {
		t.Fatalf("failed to add solution: %v", err)
	}
	if err := tree.Add(sol, camp); err != nil {
		t.Fatalf("failed to add campaign: %v", err)
	}

	// single-parent invariant
	if err := tree.Add(dsg, camp); err == nil {
		t.Error("expected error adding a second parent for the campaign")
	}

	solutions := tree.Children(dsg, func(e Element) bool { return e.Kind == KindSolution })
	if len(solutions) != 1 || solutions[0] != sol {
		t.Errorf("expected one solution child, got %v", solutions)
	}

	if !tree.OwnedBy(camp.ARN, dsg) {
		t.Error("campaign should be owned by the dataset group transitively")
	}
	if tree.OwnedBy(p.ARN(KindCampaign, "other"), dsg) {
		t.Error("unknown arn should not be owned")
	}

	if tree.Available(sol.ARN) {
		t.Error("solution arn should not be available")
	}
	if !tree.Available(p.ARN(KindSolution, "unused")) {
		t.Error("unused arn should be available")
	}
}
