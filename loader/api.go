package loader

import (
	lua "github.com/yuin/gopher-lua"
)

// registerAPI registers the Lua constructors as globals. Most follow the
// curried form Constructor "id" { ... }.
func registerAPI(L *lua.LState, coll *collector) {
	// Story { title = "...", script = [[...]] }
	L.SetGlobal("Story", L.NewFunction(func(L *lua.LState) int {
		coll.story = L.CheckTable(1)
		return 0
	}))

	// Settings { max_days = 30, max_action_points = 6, periods = {...} }
	L.SetGlobal("Settings", L.NewFunction(func(L *lua.LState) int {
		coll.settings = L.CheckTable(1)
		return 0
	}))

	// GlobalStats { { key = "beauty", label = "颜值", start = 80 }, ... }
	L.SetGlobal("GlobalStats", L.NewFunction(func(L *lua.LState) int {
		coll.globalStats = L.CheckTable(1)
		return 0
	}))

	// MemoryPool { "记忆一", "记忆二", ... }
	L.SetGlobal("MemoryPool", L.NewFunction(func(L *lua.LState) int {
		coll.memoryPool = L.CheckTable(1)
		return 0
	}))

	curried := func(sink *[]rawDef) lua.LGFunction {
		return func(L *lua.LState) int {
			id := L.CheckString(1)
			L.Push(L.NewFunction(func(L *lua.LState) int {
				tbl := L.CheckTable(1)
				*sink = append(*sink, rawDef{id: id, table: tbl})
				return 0
			}))
			return 1
		}
	}

	// World "id" { ... }
	L.SetGlobal("World", L.NewFunction(curried(&coll.worlds)))
	// Character "id" { ... }
	L.SetGlobal("Character", L.NewFunction(curried(&coll.characters)))
	// Scene "id" { ... }
	L.SetGlobal("Scene", L.NewFunction(curried(&coll.scenes)))
	// Item "id" { ... }
	L.SetGlobal("Item", L.NewFunction(curried(&coll.items)))
	// Event "id" { ... }
	L.SetGlobal("Event", L.NewFunction(curried(&coll.events)))
	// Ending "id" { ... }
	L.SetGlobal("Ending", L.NewFunction(curried(&coll.endings)))

	// Chapter(1) { name = "...", days = {1, 5} } — curried on the number.
	L.SetGlobal("Chapter", L.NewFunction(func(L *lua.LState) int {
		id := L.CheckInt(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			tbl := L.CheckTable(1)
			coll.chapters = append(coll.chapters, rawChapter{id: id, table: tbl})
			return 0
		}))
		return 1
	}))
}
