package server

import (
	"bytes"
	"encoding/json"

	"github.com/matzehuels/starmark/pkg/annotate"
	"github.com/matzehuels/starmark/pkg/starcache"
)

// controlTable is what the page script needs to cycle a control without a
// round trip.
type controlTable struct {
	Next   map[string]string `json:"next"`
	Symbol map[string]string `json:"symbol"`
	Color  map[string]string `json:"color"`
}

func newControlTable() controlTable {
	t := controlTable{Next: map[string]string{}, Symbol: map[string]string{}, Color: map[string]string{}}
	for _, s := range starcache.Statuses {
		t.Next[s.String()] = s.Next().String()
		t.Symbol[s.String()] = s.Symbol()
		t.Color[s.String()] = annotate.StatusColor(s)
	}
	return t
}

// controlScript restyles a clicked status control to the next status at once,
// then persists that status with PUT /status/{owner}/{name}. A failed write
// is reported to the console and leaves the control as drawn.
var controlScript = buildControlScript(newControlTable())

func buildControlScript(t controlTable) string {
	table, err := json.Marshal(t)
	if err != nil {
		panic(err)
	}
	return `<script>
(function () {
  var table = ` + string(table) + `;
  document.addEventListener("click", function (ev) {
    var btn = ev.target.closest("button.starmark-status");
    if (!btn) return;
    ev.preventDefault();
    var next = table.next[btn.dataset.status] || table.next.unset;
    btn.dataset.status = next;
    btn.title = next;
    btn.textContent = table.symbol[next];
    btn.style.color = table.color[next];
    fetch("/status/" + btn.dataset.repo, {
      method: "PUT",
      headers: {"Content-Type": "application/json"},
      body: JSON.stringify({status: next})
    }).then(function (r) {
      if (!r.ok) console.warn("starmark: saving " + btn.dataset.repo + " failed: " + r.status);
    }, function (err) {
      console.warn("starmark: saving " + btn.dataset.repo + " failed: " + err);
    });
  });
})();
</script>`
}

// injectScript inserts controlScript before the last </body>, or appends it.
func injectScript(page []byte) []byte {
	i := bytes.LastIndex(page, []byte("</body>"))
	if i < 0 {
		return append(page, controlScript...)
	}
	out := make([]byte, 0, len(page)+len(controlScript))
	out = append(out, page[:i]...)
	out = append(out, controlScript...)
	return append(out, page[i:]...)
}
