package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/kudimu-insights/kudimu/internal/domain"
	"github.com/kudimu-insights/kudimu/internal/infra/sqlite"
)

func init() {
	seedCmd.Flags().StringVar(&seedUserName, "user", "Participante Demo", "Name of the demo user")
	seedCmd.Flags().StringVar(&seedReward, "reward", "100", "Reward per response for the demo campaign")
	rootCmd.AddCommand(seedCmd)
}

var (
	seedUserName string
	seedReward   string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create a demo user and an active campaign with questions",
	RunE:  runSeed,
}

var demoQuestions = []struct {
	text, kind string
}{
	{"Como se desloca diariamente para o trabalho?", "multipla_escolha"},
	{"Quanto tempo demora a viagem, em minutos?", "numero"},
	{"Descreva o maior problema de transporte no seu bairro.", "texto"},
}

func runSeed(cmd *cobra.Command, args []string) error {
	reward, err := decimal.NewFromString(seedReward)
	if err != nil {
		return fmt.Errorf("invalid --reward %q: %w", seedReward, err)
	}

	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	ctx := context.Background()
	user := &domain.User{
		ID:        uuid.NewString(),
		Name:      seedUserName,
		Active:    true,
		CreatedAt: time.Now(),
	}
	campaign := domain.Campaign{
		ID:                uuid.NewString(),
		Title:             "Mobilidade urbana em Luanda",
		RewardPerResponse: reward,
		TargetCount:       500,
		Status:            domain.CampaignActive,
		CreatedAt:         time.Now(),
	}

	err = d.DB.InTx(ctx, func(s *sqlite.Store) error {
		if err := s.InsertUser(ctx, user); err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		if err := s.InsertCampaign(ctx, campaign); err != nil {
			return fmt.Errorf("insert campaign: %w", err)
		}
		for i, q := range demoQuestions {
			if err := s.InsertQuestion(ctx, domain.Question{
				ID:         uuid.NewString(),
				CampaignID: campaign.ID,
				Text:       q.text,
				Kind:       q.kind,
				Position:   i + 1,
			}); err != nil {
				return fmt.Errorf("insert question: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Printf("User:     %s (%s, #%d)\n", user.Name, user.ID, user.Seq)
	fmt.Printf("Campaign: %s (%s)\n", campaign.Title, campaign.ID)
	fmt.Printf("          reward %s per response, %d questions\n", reward.StringFixed(2), len(demoQuestions))
	return nil
}
