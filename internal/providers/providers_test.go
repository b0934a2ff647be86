package providers

import "testing"

func TestLookupKnownProviders(t *testing.T) {
	aws, ok := Lookup("aws")
	if !ok {
		t.Fatal("expected aws provider to be registered")
	}
	if aws.Anonymous || aws.Endpoint != "" {
		t.Errorf("aws provider should have no overrides, got %+v", aws)
	}

	sc, ok := Lookup("sourcecoop")
	if !ok {
		t.Fatal("expected sourcecoop provider to be registered")
	}
	if !sc.Anonymous || !sc.ForcePathStyle || sc.Endpoint != "https://data.source.coop" || sc.DefaultRegion != "us-west-2" {
		t.Errorf("unexpected sourcecoop provider: %+v", sc)
	}
}

func TestLookupNonS3Backends(t *testing.T) {
	pg, ok := Lookup("postgres")
	if !ok {
		t.Fatal("expected postgres provider to be registered")
	}
	if pg.Backend != BackendPostgres {
		t.Errorf("postgres provider Backend = %q, want %q", pg.Backend, BackendPostgres)
	}

	mongo, ok := Lookup("mongo")
	if !ok {
		t.Fatal("expected mongo provider to be registered")
	}
	if mongo.Backend != BackendMongo {
		t.Errorf("mongo provider Backend = %q, want %q", mongo.Backend, BackendMongo)
	}

	aws, _ := Lookup("aws")
	if aws.Backend != BackendS3 {
		t.Errorf("aws provider Backend = %q, want %q", aws.Backend, BackendS3)
	}
}

func TestLookupUnknownProvider(t *testing.T) {
	if _, ok := Lookup("does-not-exist"); ok {
		t.Error("expected unknown provider to miss")
	}
}

func TestAllSortedByName(t *testing.T) {
	all := All()
	if len(all) < 2 {
		t.Fatalf("expected at least 2 providers, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].Name > all[i].Name {
			t.Errorf("All() not sorted: %s before %s", all[i-1].Name, all[i].Name)
		}
	}
}

func TestDefaultNameIsRegistered(t *testing.T) {
	if _, ok := Lookup(DefaultName); !ok {
		t.Errorf("DefaultName %q is not a registered provider", DefaultName)
	}
}
