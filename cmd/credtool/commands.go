package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"nexuscred/internal/attestation"
	"nexuscred/internal/issuance/committer"
	issuancemodels "nexuscred/internal/issuance/models"
	proofmodels "nexuscred/internal/proof/models"
	requirementmodels "nexuscred/internal/requirement/models"
	vcmodels "nexuscred/internal/vc/models"
	"nexuscred/pkg/commitment"
	id "nexuscred/pkg/domain"
	"nexuscred/pkg/secrets"
)

// errInvalidCredential makes verify-vc exit non-zero after printing its report.
var errInvalidCredential = errors.New("credential failed verification")

// readInput reads the file named by args[0], or stdin when absent or "-".
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(args[0])
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func hashFieldCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-field VALUE...",
		Short: "Print the field hash of each value",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, v := range args {
				fmt.Fprintln(cmd.OutOrStdout(), commitment.HashField(v).Hex())
			}
			return nil
		},
	}
}

// LeafReport describes one credential of a committed batch.
type LeafReport struct {
	Index      int               `json:"index"`
	StudentID  id.StudentID      `json:"student_id"`
	LeafHash   commitment.Digest `json:"leaf_hash"`
	MerklePath []commitment.Step `json:"merkle_path"`
}

// RootReport is the output of the root command.
type RootReport struct {
	MerkleRoot      commitment.Digest `json:"merkle_root"`
	CredentialCount int               `json:"credential_count"`
	Leaves          []LeafReport      `json:"leaves"`
}

func rootCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "root [batch.json|-]",
		Short: "Compute the merkle root and inclusion paths of a batch",
		Long: "Reads a batch in the POST /api/batches request format and prints " +
			"the merkle root with every credential's leaf hash and path.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(cmd)
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			var req issuancemodels.CommitBatchRequest
			if err := json.Unmarshal(raw, &req); err != nil {
				return fmt.Errorf("decode batch: %w", err)
			}
			req.Normalize()
			if err := req.Validate(); err != nil {
				return err
			}
			batch := req.ToBatch()
			c, err := committer.Build(batch)
			if err != nil {
				return err
			}

			report := RootReport{MerkleRoot: c.Root(), CredentialCount: len(batch.Credentials)}
			for i, cred := range batch.Credentials {
				leaf, err := c.Leaf(i)
				if err != nil {
					return err
				}
				path, err := c.PathFor(i)
				if err != nil {
					return err
				}
				report.Leaves = append(report.Leaves, LeafReport{
					Index:      i,
					StudentID:  cred.StudentID,
					LeafHash:   leaf,
					MerklePath: path,
				})
			}
			log.Debug("batch committed", "merkle_root", report.MerkleRoot.Hex(), "credential_count", report.CredentialCount)
			return writeJSON(cmd, report)
		},
	}
}

// VCReport is the output of verify-vc.
type VCReport struct {
	Valid        bool              `json:"valid"`
	LeafHash     commitment.Digest `json:"leaf_hash"`
	ComputedRoot commitment.Digest `json:"computed_root"`
	Reason       string            `json:"reason,omitempty"`
}

func verifyVCCommand() *cobra.Command {
	var expectedRoot string
	cmd := &cobra.Command{
		Use:   "verify-vc [credential.json|-]",
		Short: "Check a credential's inclusion path against its merkle root",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			var vc vcmodels.VerifiableCredential
			if err := json.Unmarshal(raw, &vc); err != nil {
				return fmt.Errorf("decode credential: %w", err)
			}

			leaf := vc.LeafHash()
			report := VCReport{
				LeafHash:     leaf,
				ComputedRoot: commitment.RootFromPath(leaf, vc.MerklePath),
			}
			switch {
			case report.ComputedRoot != vc.MerkleRoot:
				report.Reason = "merkle path does not reproduce merkle_root"
			case expectedRoot != "":
				want, err := commitment.ParseDigest(expectedRoot)
				if err != nil {
					return fmt.Errorf("--root: %w", err)
				}
				if want != vc.MerkleRoot {
					report.Reason = "merkle_root does not match --root"
				}
			}
			report.Valid = report.Reason == ""

			if err := writeJSON(cmd, report); err != nil {
				return err
			}
			if !report.Valid {
				return errInvalidCredential
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&expectedRoot, "root", "", "anchored merkle root the credential must carry")
	return cmd
}

// PolicyReport is the output of policy-hash.
type PolicyReport struct {
	Canonical      string            `json:"canonical"`
	CommitmentHash commitment.Digest `json:"commitment_hash"`
}

func policyHashCommand() *cobra.Command {
	var jobDefaults bool
	cmd := &cobra.Command{
		Use:   "policy-hash [policy.json|-]",
		Short: "Print the canonical form and commitment hash of a policy",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			var policy requirementmodels.Policy
			if err := json.Unmarshal(raw, &policy); err != nil {
				return fmt.Errorf("decode policy: %w", err)
			}
			if jobDefaults {
				policy = policy.WithJobDefaults()
			}
			if len(policy) == 0 {
				return errors.New("policy is empty")
			}
			if err := policy.Validate(); err != nil {
				return err
			}
			return writeJSON(cmd, PolicyReport{
				Canonical:      policy.Canonical(),
				CommitmentHash: policy.CommitmentHash(),
			})
		},
	}
	cmd.Flags().BoolVar(&jobDefaults, "job-defaults", false, "fill missing standard job keys with their defaults")
	return cmd
}

// dev key; matches the server default when ATTESTATION_SIGNING_KEY is unset
const devAttestationKey = "dev-attestation-key-change-me"

func attestCommand() *cobra.Command {
	var (
		key, issuer, student, requirement, tokenRef, proofID string
		ttl                                                  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "attest",
		Short: "Sign a development eligibility attestation",
		Long:  "Signs an attestation with a development key. Tokens signed with the default key are rejected by any deployment that sets its own key.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			hash, err := commitment.ParseDigest(requirement)
			if err != nil {
				return fmt.Errorf("--requirement: %w", err)
			}
			if proofID == "" {
				proofID = id.NewProofID().String()
			}
			now := time.Now()
			p := proofmodels.NewSubmission(id.ProofID(proofID), id.StudentID(student), hash, proofmodels.Groth16Proof{}, nil, now)
			if tokenRef == "" {
				tokenRef = "sbt_" + proofID
			}
			if err := p.MarkVerified(tokenRef, now); err != nil {
				return err
			}
			att, err := attestation.New(key, issuer, ttl).Attest(p)
			if err != nil {
				return err
			}
			return writeJSON(cmd, att)
		},
	}
	cmd.Flags().StringVar(&key, "key", devAttestationKey, "HS256 signing key")
	cmd.Flags().StringVar(&issuer, "issuer", "nexuscred", "token issuer")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	cmd.Flags().StringVar(&student, "student", "", "student the attestation is bound to")
	cmd.Flags().StringVar(&requirement, "requirement", "", "requirement commitment hash")
	cmd.Flags().StringVar(&tokenRef, "token-ref", "", "minted token reference (default sbt_<proof>)")
	cmd.Flags().StringVar(&proofID, "proof", "", "proof id (default: freshly minted)")
	_ = cmd.MarkFlagRequired("student")
	_ = cmd.MarkFlagRequired("requirement")
	return cmd
}

func genKeyCommand() *cobra.Command {
	var size int
	cmd := &cobra.Command{
		Use:   "gen-key",
		Short: "Generate a random signing key for ATTESTATION_SIGNING_KEY",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := secrets.Generate(size)
			if err != nil {
				return err
			}
			newLogger(cmd).Debug("generated key", "bytes", size)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), key)
			return err
		},
	}
	cmd.Flags().IntVar(&size, "bytes", secrets.DefaultSize, "key length in bytes")
	return cmd
}
