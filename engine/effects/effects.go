// Package effects applies item use to the session. Every item effect goes
// through Use, so consumption bookkeeping and the stat clamps live in one
// place.
package effects

import (
	"errors"
	"fmt"

	"github.com/nathoo/mirrorloop/catalog"
	"github.com/nathoo/mirrorloop/engine/state"
	"github.com/nathoo/mirrorloop/types"
)

var (
	ErrNotOwned    = errors.New("item not in inventory")
	ErrNoCharacter = errors.New("no character selected")
)

const (
	potionStamina  = 30
	candyAffection = 5
)

// Result is the display outcome of one item use.
type Result struct {
	Message  string
	Consumed bool
}

// Use applies one item's effect. Consumables decrement and vanish at zero;
// collectibles and quest items stay in the inventory.
func Use(cat *catalog.Catalog, sess *types.Session, itemID string) (Result, error) {
	if sess.Inventory[itemID] <= 0 {
		return Result{}, ErrNotOwned
	}
	item, ok := cat.Item(itemID)
	if !ok {
		return Result{}, ErrNotOwned
	}

	var res Result
	switch itemID {
	case "potion":
		state.ApplyGlobalDelta(cat, sess, types.GlobalDelta{StatKey: "stamina", Delta: potionStamina})
		res.Message = fmt.Sprintf("一股暖流涌遍全身，体力恢复了。【体力+%d】", potionStamina)

	case "candy":
		if sess.CurrentCharacter == "" {
			return Result{}, ErrNoCharacter
		}
		ch, found := cat.Character(sess.CurrentCharacter)
		if !found {
			return Result{}, ErrNoCharacter
		}
		state.ApplyCharacterDelta(sess, types.CharacterDelta{
			CharacterID: ch.ID, StatKey: "affection", Delta: candyAffection,
		})
		res.Message = fmt.Sprintf("你把糖果递给%s，他眼中闪过一丝笑意。【%s 好感+%d】",
			ch.Name, ch.Name, candyAffection)

	case "memory_stone":
		if len(sess.LostMemories) == 0 {
			// Nothing to recall; the stone is not spent.
			res.Message = "记忆之石安静地躺在掌心，没有任何回应。"
			return res, nil
		}
		latest := sess.LostMemories[len(sess.LostMemories)-1]
		res.Message = fmt.Sprintf("记忆之石发出柔光...你暂时想起了：「%s」", latest)

	case "detector":
		res.Message = fmt.Sprintf("探测器的指针微微颤动。你已收集 %d/4 枚灵魂碎片。", sess.SoulFragments)

	default:
		res.Message = item.Description
	}

	if item.Type == types.ItemConsumable || item.Type == types.ItemSocial {
		sess.Inventory[itemID]--
		if sess.Inventory[itemID] <= 0 {
			delete(sess.Inventory, itemID)
		}
		res.Consumed = true
	}
	return res, nil
}
