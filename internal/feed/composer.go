package feed

import "fmt"

// Placement policy for secondary cards
const (
	QuestFrequency          = 7
	AccountabilityFrequency = 10
	MaxQuestCards           = 5
	MaxAccountabilityCards  = 3
)

// Compose emits every post in order and, after each QuestFrequency-th and
// AccountabilityFrequency-th post, the next unused card of that kind until
// its quota is reached. The output depends only on the inputs.
func Compose(posts []Post, quests []Quest, updates []AccountabilityUpdate) []Item {
	items := make([]Item, 0, len(posts)+MaxQuestCards+MaxAccountabilityCards)
	questLimit := min(len(quests), MaxQuestCards)
	updateLimit := min(len(updates), MaxAccountabilityCards)

	questIndex, accountabilityIndex := 0, 0
	for i := range posts {
		post := posts[i]
		items = append(items, Item{ID: post.ID, Type: ItemPost, Post: &post})

		position := i + 1
		if position%QuestFrequency == 0 && questIndex < questLimit {
			quest := quests[questIndex]
			items = append(items, Item{ID: fmt.Sprintf("quest-%s", quest.ID), Type: ItemQuest, Quest: &quest})
			questIndex++
		}
		if position%AccountabilityFrequency == 0 && accountabilityIndex < updateLimit {
			update := updates[accountabilityIndex]
			items = append(items, Item{ID: fmt.Sprintf("accountability-%s", update.ID), Type: ItemAccountability, Accountability: &update})
			accountabilityIndex++
		}
	}
	return items
}
