package discord

import (
	"context"
	"sync"

	"github.com/bwmarrin/discordgo"

	"dlerbot/internal/task"
)

type fakeRest struct {
	mu         sync.Mutex
	responses  []*discordgo.InteractionResponse
	edits      []*discordgo.WebhookEdit
	followups  []*discordgo.WebhookParams
	chanEdits  []*discordgo.MessageEdit
	respondErr error
}

func (f *fakeRest) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.respondErr != nil {
		return f.respondErr
	}
	f.responses = append(f.responses, resp)
	return nil
}

func (f *fakeRest) InteractionResponse(_ *discordgo.Interaction, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	return &discordgo.Message{ID: "m1", ChannelID: "c1"}, nil
}

func (f *fakeRest) InteractionResponseEdit(_ *discordgo.Interaction, e *discordgo.WebhookEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, e)
	return &discordgo.Message{}, nil
}

func (f *fakeRest) FollowupMessageCreate(_ *discordgo.Interaction, _ bool, p *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.followups = append(f.followups, p)
	return &discordgo.Message{}, nil
}

func (f *fakeRest) ChannelMessageEditComplex(m *discordgo.MessageEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chanEdits = append(f.chanEdits, m)
	return &discordgo.Message{}, nil
}

func (f *fakeRest) counts() (responses, edits, followups, chanEdits int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.responses), len(f.edits), len(f.followups), len(f.chanEdits)
}

func (f *fakeRest) response(n int) *discordgo.InteractionResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.responses[n]
}

func (f *fakeRest) followup(n int) *discordgo.WebhookParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.followups[n]
}

// pendingJobs accepts every job and never finishes it.
type pendingJobs struct{}

func (pendingJobs) CreateJob(context.Context, string, bool) (string, error) { return "42", nil }

func (pendingJobs) GetStatus(_ context.Context, id string) (*task.Job, error) {
	return &task.Job{ID: id, Status: task.StatusPending}, nil
}

func (pendingJobs) DeleteJob(context.Context, string) error { return nil }

func commandInteraction(userID, rawURL string) *discordgo.Interaction {
	return &discordgo.Interaction{
		ID:   "i-cmd",
		Type: discordgo.InteractionApplicationCommand,
		Data: discordgo.ApplicationCommandInteractionData{
			Name: commandName,
			Options: []*discordgo.ApplicationCommandInteractionDataOption{
				{Name: "url", Type: discordgo.ApplicationCommandOptionString, Value: rawURL},
			},
		},
		Member: &discordgo.Member{User: &discordgo.User{ID: userID}},
	}
}

func componentInteraction(userID, customID string) *discordgo.Interaction {
	return &discordgo.Interaction{
		ID:   "i-btn",
		Type: discordgo.InteractionMessageComponent,
		Data: discordgo.MessageComponentInteractionData{
			CustomID:      customID,
			ComponentType: discordgo.ButtonComponent,
		},
		User: &discordgo.User{ID: userID},
	}
}
