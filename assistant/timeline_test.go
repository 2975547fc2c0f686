package assistant

import (
	"testing"

	"github.com/72rs3/pharmacy-assistant-sub000/models"
)

func TestTimelineAppendEvictsSameKindForm(t *testing.T) {
	tl := NewTimeline()

	first := newMessage(models.SenderAI, "fill in the intake form")
	first.EmbeddedForm = models.FormIntake
	tl.Append(first)
	tl.Append(newMessage(models.SenderUser, "hold on"))

	second := newMessage(models.SenderAI, "here is the intake form again")
	second.EmbeddedForm = models.FormIntake
	tl.Append(second)

	forms := tl.OpenForms()
	if len(forms) != 1 {
		t.Fatalf("expected exactly one live intake form, got %d", len(forms))
	}
	msgs := tl.Messages()
	if msgs[len(msgs)-1].ID != second.ID {
		t.Fatalf("expected the newer form message to survive")
	}
	for _, m := range msgs {
		if m.ID == first.ID {
			t.Fatalf("expected the older form message to be evicted")
		}
	}
}

func TestTimelineAppendKeepsDistinctFormKinds(t *testing.T) {
	tl := NewTimeline()

	intake := newMessage(models.SenderAI, "intake")
	intake.EmbeddedForm = models.FormIntake
	tl.Append(intake)

	booking := newMessage(models.SenderAI, "booking")
	booking.EmbeddedForm = models.FormAppointment
	tl.Append(booking)

	if got := len(tl.OpenForms()); got != 2 {
		t.Fatalf("expected both form kinds to stay open, got %d", got)
	}
}

func TestTimelineReplaceTailKeepsWelcome(t *testing.T) {
	tl := NewTimeline()
	welcome := newMessage(models.SenderAI, "welcome")
	tl.Append(welcome)
	tl.Append(newMessage(models.SenderUser, "old user turn"))
	tl.Append(newMessage(models.SenderAI, "old ai turn"))

	fetched := []models.ChatMessage{
		newMessage(models.SenderUser, "fetched user turn"),
		newMessage(models.SenderPharmacist, "fetched pharmacist turn"),
	}
	tl.ReplaceTail(1, fetched)

	msgs := tl.Messages()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages after tail replace, got %d", len(msgs))
	}
	if msgs[0].ID != welcome.ID {
		t.Fatalf("expected the welcome message to stay at the head")
	}
	if msgs[1].Text != "fetched user turn" || msgs[2].Text != "fetched pharmacist turn" {
		t.Fatalf("expected the tail to be the fetched history, got %q / %q", msgs[1].Text, msgs[2].Text)
	}
}

func TestTimelineReplaceTailClampsKeep(t *testing.T) {
	tl := NewTimeline()
	tl.ReplaceTail(5, []models.ChatMessage{newMessage(models.SenderAI, "only")})
	if tl.Len() != 1 {
		t.Fatalf("expected 1 message, got %d", tl.Len())
	}
	tl.ReplaceTail(-1, nil)
	if tl.Len() != 0 {
		t.Fatalf("expected empty timeline, got %d", tl.Len())
	}
}

func TestTimelineMessagesReturnsCopy(t *testing.T) {
	tl := NewTimeline()
	tl.Append(newMessage(models.SenderAI, "original"))

	msgs := tl.Messages()
	msgs[0].Text = "mutated"

	if tl.Messages()[0].Text != "original" {
		t.Fatalf("expected the timeline to be isolated from returned slices")
	}
}

func TestTimelineFind(t *testing.T) {
	tl := NewTimeline()
	msg := newMessage(models.SenderAI, "findable")
	tl.Append(msg)

	got, ok := tl.Find(msg.ID)
	if !ok || got.Text != "findable" {
		t.Fatalf("expected to find the appended message")
	}
	if _, ok := tl.Find("nope"); ok {
		t.Fatalf("expected a miss for an unknown id")
	}
}
