package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/chameleon-systems/chameleon/internal/forensics"
	"github.com/chameleon-systems/chameleon/internal/ledger"
	"github.com/chameleon-systems/chameleon/internal/models"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit ledger integrity",
	Long: `Pull recent events and the batch chain from the forensics API, then
re-verify them locally: every event's content hash is recomputed, and
every hash batch fully covered by the fetched window has its merkle
root rebuilt and compared against the server's record.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")
		token, _ := cmd.Flags().GetString("token")
		limit, _ := cmd.Flags().GetInt("limit")
		batchSize, _ := cmd.Flags().GetInt("batch-size")

		if token == "" {
			return fmt.Errorf("--token is required")
		}

		client := newForensicsClient(server, token)

		events, err := client.events(limit)
		if err != nil {
			return fmt.Errorf("failed to fetch events: %w", err)
		}
		status, err := client.status()
		if err != nil {
			return fmt.Errorf("failed to fetch ledger status: %w", err)
		}

		fmt.Printf("Ledger: %d events total, %d batches sealed\n",
			status.Counter.TotalEvents, len(status.Batches))
		fmt.Printf("Fetched %d events for audit\n", len(events))

		tampered := 0
		for _, ev := range events {
			ok, err := ledger.VerifyEvent(ev)
			if err != nil {
				return fmt.Errorf("failed to verify event %s: %w", ev.EventID, err)
			}
			if !ok {
				tampered++
				fmt.Printf("TAMPERED: event %s (seq %d) hash mismatch\n", ev.EventID, ev.Seq)
			}
		}
		if tampered == 0 {
			fmt.Printf("Content hashes: %d/%d verified\n", len(events), len(events))
		}

		checked, mismatched := auditBatches(events, status, batchSize)
		fmt.Printf("Merkle batches: %d covered by window, %d mismatched\n", checked, mismatched)

		if tampered > 0 || mismatched > 0 {
			return fmt.Errorf("audit failed: %d tampered events, %d batch mismatches", tampered, mismatched)
		}
		fmt.Println("Audit passed")
		return nil
	},
}

// auditBatches rebuilds the merkle root of every batch whose full seq
// window is present in events and compares it with the server's record.
func auditBatches(events []*models.Event, status *forensics.StatusReport, batchSize int) (checked, mismatched int) {
	if batchSize <= 0 || len(events) == 0 {
		return 0, 0
	}

	hashBySeq := make(map[int64]string, len(events))
	for _, ev := range events {
		hashBySeq[ev.Seq] = ev.ContentHash
	}

	for i, batch := range status.Batches {
		firstSeq := int64(i)*int64(batchSize) + 1
		lastSeq := int64(i+1) * int64(batchSize)

		leaves := make([]string, 0, batchSize)
		complete := true
		for seq := firstSeq; seq <= lastSeq; seq++ {
			h, ok := hashBySeq[seq]
			if !ok {
				complete = false
				break
			}
			leaves = append(leaves, h)
		}
		if !complete {
			continue
		}

		checked++
		if ledger.MerkleRoot(leaves) != batch.RootHash {
			mismatched++
			fmt.Printf("MISMATCH: batch %d (seq %d-%d) root differs from server record\n",
				i+1, firstSeq, lastSeq)
		}
	}
	return checked, mismatched
}

type forensicsClient struct {
	base  string
	token string
	http  *http.Client
}

func newForensicsClient(base, token string) *forensicsClient {
	return &forensicsClient{
		base:  base,
		token: token,
		http:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *forensicsClient) get(path string, out any) error {
	req, err := http.NewRequest(http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *forensicsClient) events(limit int) ([]*models.Event, error) {
	var body struct {
		Events []*models.Event `json:"events"`
	}
	path := fmt.Sprintf("/forensics/events?limit=%d", limit)
	if err := c.get(path, &body); err != nil {
		return nil, err
	}
	return body.Events, nil
}

func (c *forensicsClient) status() (*forensics.StatusReport, error) {
	var status forensics.StatusReport
	if err := c.get("/forensics/ledger", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func init() {
	auditCmd.Flags().Int("limit", 1000, "how many recent events to audit")
	auditCmd.Flags().Int("batch-size", ledger.DefaultBatchSize, "hash batch size configured on the server")

	rootCmd.AddCommand(auditCmd)
}
