package research

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/joseph-ayodele/bytelense/constants"
	"github.com/joseph-ayodele/bytelense/internal/entity"
	"github.com/joseph-ayodele/bytelense/internal/llm"
)

// scriptedAgent sends its updates, then optionally stalls until the client gives up.
type scriptedAgent struct {
	updates []AgentUpdate
	stall   bool
	got     chan AgentRequest
}

func (a *scriptedAgent) Research(ctx context.Context, req AgentRequest, send func(AgentUpdate) error) error {
	if a.got != nil {
		a.got <- req
	}
	for _, u := range a.updates {
		if err := send(u); err != nil {
			return err
		}
	}
	if a.stall {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func startAgent(t *testing.T, srv AgentServer) *AgentClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	RegisterAgentServer(s, srv)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewAgentClient(conn, nil)
}

func TestAgentClientStreamsToCompletion(t *testing.T) {
	got := make(chan AgentRequest, 1)
	agent := &scriptedAgent{
		got: got,
		updates: []AgentUpdate{
			{Findings: llm.LabelFields{ProductName: "Protein Bar"}, Confidence: 0.4},
			{
				Findings:   llm.LabelFields{ProductName: "Protein Bar", ServingSize: "60 g", PerServing: map[string]float64{"protein": 20}},
				Citations:  []AgentCitation{{SourceType: "searxng_web", Title: "USDA FoodData", URL: "https://fdc.nal.usda.gov/x"}},
				Confidence: 0.8,
				Done:       true,
			},
		},
	}
	c := startAgent(t, agent)

	hints := Hints{Name: "Protein Bar", Missing: []string{entity.SlotQuantity}}
	rec, cites, conf, err := c.Research(context.Background(), TaskFor(hints, DataServingSize), hints, DataServingSize)
	if err != nil {
		t.Fatal(err)
	}
	req := <-got
	if req.DataType != DataServingSize || req.Hints.Name != "Protein Bar" || !strings.Contains(req.Task, "serving size") {
		t.Fatalf("request = %+v", req)
	}
	if conf != 0.8 || rec.Confidence != 0.8 || rec.ServingSizeG != 60 || rec.PerServing[constants.Protein] != 20 {
		t.Fatalf("rec = %+v conf = %v", rec, conf)
	}
	if rec.ExtractionMethod != constants.MethodResearch {
		t.Fatalf("method = %q", rec.ExtractionMethod)
	}
	if len(cites) != 1 || cites[0].AuthorityScore != 0.95 {
		t.Fatalf("citations = %+v", cites)
	}
}

func TestAgentClientReturnsPartialFindingsOnDeadline(t *testing.T) {
	agent := &scriptedAgent{
		stall: true,
		updates: []AgentUpdate{{
			Findings:   llm.LabelFields{ProductName: "Granola", Per100g: map[string]float64{"calories": 450}},
			Confidence: 0.6,
		}},
	}
	c := startAgent(t, agent)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	rec, _, conf, err := c.Research(ctx, "Find nutrition facts for Granola", Hints{Name: "Granola"}, DataNutritionFacts)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if rec.Per100g[constants.Calories] != 450 || conf != 0.6 {
		t.Fatalf("partial findings lost: %+v conf=%v", rec, conf)
	}
}

func TestAgentClientSkipsInvalidFindings(t *testing.T) {
	agent := &scriptedAgent{updates: []AgentUpdate{
		{Findings: llm.LabelFields{ProductName: "Chips", Per100g: map[string]float64{"fat": 30}}, Confidence: 0.5},
		{Findings: llm.LabelFields{ProductName: "Chips", Per100g: map[string]float64{"fat": -4}}, Confidence: 0.9, Done: true},
	}}
	c := startAgent(t, agent)

	rec, _, conf, err := c.Research(context.Background(), "t", Hints{Name: "Chips"}, DataNutritionFacts)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Per100g[constants.Fat] != 30 || conf != 0.5 {
		t.Fatalf("rec = %+v conf = %v", rec, conf)
	}
}

const searxPayload = `{"results":[
 {"title":"Granola Crunch nutrition facts","url":"https://www.nutritionix.com/granola","content":"Serving size 50 g. 220 calories, Protein 5 g, Sugars 12 g, Sodium 95 mg"},
 {"title":"Granola Crunch | FDA","url":"https://www.fda.gov/granola","content":"Dietary fiber 4 g per serving"},
 {"title":"Unrelated","url":"https://example.com","content":"nothing useful here"},
 {"title":"Another","url":"https://example.org","content":"no numbers"}
]}`

func searxServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" || r.URL.Query().Get("format") != "json" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if !strings.Contains(r.URL.Query().Get("q"), "Granola Crunch") {
			_, _ = w.Write([]byte(`{"results":[]}`))
			return
		}
		_, _ = w.Write([]byte(searxPayload))
	}))
}

func TestSearXNGResearch(t *testing.T) {
	srv := searxServer(t)
	defer srv.Close()
	s := NewSearXNG(SearXNGConfig{BaseURL: srv.URL}, nil)

	rec, cites, conf, err := s.Research(context.Background(), "", Hints{Name: "Granola Crunch"}, DataNutritionFacts)
	if err != nil {
		t.Fatal(err)
	}
	if rec.PerServing[constants.Calories] != 220 || rec.PerServing[constants.Sodium] != 95 || rec.PerServing[constants.Fiber] != 4 {
		t.Fatalf("per serving = %v", rec.PerServing)
	}
	if rec.ServingSizeG != 50 {
		t.Fatalf("serving = %v", rec.ServingSizeG)
	}
	if conf <= 0 || conf > webMaxConfidence {
		t.Fatalf("confidence = %v", conf)
	}
	if len(cites) != 3 {
		t.Fatalf("citations = %d", len(cites))
	}
	for _, c := range cites {
		if c.SourceType != constants.SourceWeb || len(c.Snippet) > constants.MaxSnippetLen {
			t.Fatalf("citation = %+v", c)
		}
	}
	if cites[1].AuthorityScore != 0.95 || cites[0].AuthorityScore != 0.7 {
		t.Fatalf("authority = %v / %v", cites[0].AuthorityScore, cites[1].AuthorityScore)
	}
}

func TestSearXNGNoResults(t *testing.T) {
	srv := searxServer(t)
	defer srv.Close()
	s := NewSearXNG(SearXNGConfig{BaseURL: srv.URL}, nil)

	_, _, conf, err := s.Research(context.Background(), "", Hints{Name: "Mystery"}, DataNutritionFacts)
	if err != nil || conf != 0 {
		t.Fatalf("conf = %v err = %v", conf, err)
	}
	if _, _, _, err := s.Research(context.Background(), "", Hints{}, DataNutritionFacts); err == nil {
		t.Fatal("expected error without a query")
	}
}

func TestLocalAgentOverGRPC(t *testing.T) {
	srv := searxServer(t)
	defer srv.Close()
	c := startAgent(t, &LocalAgent{Researcher: NewSearXNG(SearXNGConfig{BaseURL: srv.URL}, nil)})

	rec, cites, conf, err := c.Research(context.Background(), "Find nutrition facts for Granola Crunch", Hints{Name: "Granola Crunch"}, DataNutritionFacts)
	if err != nil {
		t.Fatal(err)
	}
	if rec.PerServing[constants.Calories] != 220 || len(cites) != 3 || conf <= 0 {
		t.Fatalf("rec = %+v cites = %d conf = %v", rec, len(cites), conf)
	}
}

func TestDataTypeFor(t *testing.T) {
	cases := []struct {
		missing []string
		want    string
	}{
		{nil, DataNutritionFacts},
		{[]string{entity.SlotEnergy}, DataNutritionFacts},
		{[]string{entity.SlotQuantity}, DataServingSize},
		{[]string{entity.SlotQuantity, entity.SlotIdentity}, DataProductIdentity},
	}
	for _, c := range cases {
		if got := DataTypeFor(c.missing); got != c.want {
			t.Errorf("DataTypeFor(%v) = %s, want %s", c.missing, got, c.want)
		}
	}
	if q := (Hints{Barcode: "12345678"}).Query(); q != "12345678" {
		t.Errorf("query = %q", q)
	}
}
