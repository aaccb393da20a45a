package spreadsheet

import (
	"iter"
	"math/bits"
	"slices"
)

// ChunkKey represents the key for indexing chunks in a CellIndex
type ChunkKey struct {
	ChunkRow int
	ChunkCol int
}

// CellIndex maps grid positions of one sheet to cell ids.
//
// architecture:
//   - positions are partitioned into 64x64 chunks for spatial locality
//   - each chunk keeps a bit-packed occupancy bitmap so that iterating a
//     sparse chunk skips empty words
//   - cell records themselves live in the cell arena, the index only holds ids
//
// performance characteristics:
//   - O(1) lookup within loaded chunks
//   - memory allocated only for non-empty regions
//   - a chunk is dropped as soon as its last position is removed
type CellIndex struct {
	chunks map[ChunkKey]*Chunk
	total  int
}

const (
	ChunkRows = 64                    // rows per chunk - power of 2 for efficient modulo
	ChunkCols = 64                    // columns per chunk
	ChunkSize = ChunkRows * ChunkCols // 4096 positions per chunk
)

// Chunk represents a 64x64 region of positions in column-first layout
type Chunk struct {
	IDs            []CellID // cell id for each position, 0 when empty
	NonEmptyCount  int      // count of occupied positions
	OccupiedBitmap []uint64 // bit-packed array tracking which positions are occupied
}

// NewCellIndex creates an empty index
func NewCellIndex() *CellIndex {
	return &CellIndex{chunks: make(map[ChunkKey]*Chunk)}
}

func locate(col, row int) (ChunkKey, int) {
	key := ChunkKey{ChunkRow: row / ChunkRows, ChunkCol: col / ChunkCols}
	localRow := row % ChunkRows
	localCol := col % ChunkCols
	return key, localCol*ChunkRows + localRow
}

// getChunk retrieves a chunk, creating it when asked to
func (ci *CellIndex) getChunk(key ChunkKey, create bool) *Chunk {
	chunk, exists := ci.chunks[key]
	if !exists && create {
		chunk = &Chunk{
			IDs:            make([]CellID, ChunkSize),
			OccupiedBitmap: make([]uint64, ChunkSize/64),
		}
		ci.chunks[key] = chunk
	}
	return chunk
}

// Get returns the id stored at col, row
func (ci *CellIndex) Get(col, row int) (CellID, bool) {
	if col < 0 || row < 0 {
		return 0, false
	}
	key, idx := locate(col, row)
	chunk := ci.getChunk(key, false)
	if chunk == nil || chunk.OccupiedBitmap[idx/64]&(1<<(idx%64)) == 0 {
		return 0, false
	}
	return chunk.IDs[idx], true
}

// Set stores id at col, row
func (ci *CellIndex) Set(col, row int, id CellID) {
	key, idx := locate(col, row)
	chunk := ci.getChunk(key, true)
	if chunk.OccupiedBitmap[idx/64]&(1<<(idx%64)) == 0 {
		chunk.OccupiedBitmap[idx/64] |= 1 << (idx % 64)
		chunk.NonEmptyCount++
		ci.total++
	}
	chunk.IDs[idx] = id
}

// Remove clears col, row
func (ci *CellIndex) Remove(col, row int) {
	key, idx := locate(col, row)
	chunk := ci.getChunk(key, false)
	if chunk == nil || chunk.OccupiedBitmap[idx/64]&(1<<(idx%64)) == 0 {
		return
	}
	chunk.OccupiedBitmap[idx/64] &^= 1 << (idx % 64)
	chunk.IDs[idx] = 0
	chunk.NonEmptyCount--
	ci.total--
	if chunk.NonEmptyCount == 0 {
		delete(ci.chunks, key)
	}
}

// Len returns the number of occupied positions
func (ci *CellIndex) Len() int {
	return ci.total
}

// All iterates occupied positions in a stable order: chunks by row then
// column, positions column-first inside a chunk
func (ci *CellIndex) All() iter.Seq2[Position, CellID] {
	return func(yield func(Position, CellID) bool) {
		keys := make([]ChunkKey, 0, len(ci.chunks))
		for k := range ci.chunks {
			keys = append(keys, k)
		}
		slices.SortFunc(keys, func(a, b ChunkKey) int {
			if a.ChunkRow != b.ChunkRow {
				return a.ChunkRow - b.ChunkRow
			}
			return a.ChunkCol - b.ChunkCol
		})
		for _, key := range keys {
			chunk := ci.chunks[key]
			for w, word := range chunk.OccupiedBitmap {
				for word != 0 {
					bit := bits.TrailingZeros64(word)
					word &^= 1 << bit
					idx := w*64 + bit
					pos := Position{
						Col: key.ChunkCol*ChunkCols + idx/ChunkRows,
						Row: key.ChunkRow*ChunkRows + idx%ChunkRows,
					}
					if !yield(pos, chunk.IDs[idx]) {
						return
					}
				}
			}
		}
	}
}

// positionIndex is the kvStore behind the cells plugin's position slot. it
// keeps one CellIndex per sheet and the reverse id -> address lookup.
type positionIndex struct {
	sheets map[string]*CellIndex
	byID   map[CellID]CellAddress
}

func newPositionIndex() *positionIndex {
	return &positionIndex{
		sheets: make(map[string]*CellIndex),
		byID:   make(map[CellID]CellAddress),
	}
}

// addressOf returns where the cell with id currently sits
func (p *positionIndex) addressOf(id CellID) (CellAddress, bool) {
	addr, ok := p.byID[id]
	return addr, ok
}

func (p *positionIndex) sheet(sheetID string) *CellIndex {
	return p.sheets[sheetID]
}

func (p *positionIndex) load(addr CellAddress) (CellID, bool) {
	ci := p.sheets[addr.SheetID]
	if ci == nil {
		return 0, false
	}
	return ci.Get(addr.Col, addr.Row)
}

func (p *positionIndex) store(addr CellAddress, id CellID) {
	ci := p.sheets[addr.SheetID]
	if ci == nil {
		ci = NewCellIndex()
		p.sheets[addr.SheetID] = ci
	}
	if old, ok := ci.Get(addr.Col, addr.Row); ok && p.byID[old] == addr {
		delete(p.byID, old)
	}
	ci.Set(addr.Col, addr.Row, id)
	p.byID[id] = addr
}

func (p *positionIndex) remove(addr CellAddress) {
	ci := p.sheets[addr.SheetID]
	if ci == nil {
		return
	}
	if old, ok := ci.Get(addr.Col, addr.Row); ok && p.byID[old] == addr {
		delete(p.byID, old)
	}
	ci.Remove(addr.Col, addr.Row)
	if ci.Len() == 0 {
		delete(p.sheets, addr.SheetID)
	}
}

func (p *positionIndex) size() int {
	total := 0
	for _, ci := range p.sheets {
		total += ci.Len()
	}
	return total
}

func (p *positionIndex) all() iter.Seq2[CellAddress, CellID] {
	return func(yield func(CellAddress, CellID) bool) {
		ids := make([]string, 0, len(p.sheets))
		for id := range p.sheets {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		for _, sheetID := range ids {
			for pos, id := range p.sheets[sheetID].All() {
				if !yield(CellAddress{SheetID: sheetID, Col: pos.Col, Row: pos.Row}, id) {
					return
				}
			}
		}
	}
}
