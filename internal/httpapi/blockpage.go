package httpapi

import "net/http"

// The block page is the redirect target for denied navigations. It polls the
// state endpoint and listens on the event feed so it flips to "unlocked" the
// moment the goal is met, and offers a return link to the blocked
// destination.
const blockPageHTML = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>solvegate: locked</title>
<style>
  body { font-family: system-ui, sans-serif; background: #101418; color: #e8eaed;
         display: flex; align-items: center; justify-content: center; min-height: 100vh; margin: 0; }
  .card { max-width: 28rem; padding: 2rem; background: #1b2127; border-radius: 12px; text-align: center; }
  h1 { font-size: 1.4rem; margin: 0 0 0.5rem; }
  .count { font-size: 3rem; font-weight: 700; margin: 0.5rem 0; }
  .muted { color: #9aa0a6; font-size: 0.9rem; }
  a { color: #8ab4f8; }
  #return { display: none; margin-top: 1rem; }
</style>
</head>
<body>
<div class="card">
  <h1>Solve first, browse later</h1>
  <p class="count"><span id="solves">–</span>/<span id="goal">–</span></p>
  <p class="muted" id="daily"></p>
  <p class="muted">Progress updates automatically as solves are detected.</p>
  <p id="return"><a id="returnLink" href="#">Return to where you were headed</a></p>
</div>
<script>
const token = new URLSearchParams(location.search).get("token") || "";
const qs = token ? "?token=" + encodeURIComponent(token) : "";
function render(s) {
  document.getElementById("solves").textContent = s.solvesToday;
  document.getElementById("goal").textContent = s.dailyGoal;
  document.getElementById("daily").textContent =
    s.requireDaily && s.dailyTitle ? "Daily challenge: " + s.dailyTitle : "";
  if (s.goalMet && s.lastBlockedUrl) {
    const link = document.getElementById("returnLink");
    link.href = s.lastBlockedUrl;
    document.getElementById("return").style.display = "block";
  }
}
fetch("/v1/state" + qs).then(r => r.json()).then(render).catch(() => {});
try {
  const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/v1/events" + qs);
  ws.onmessage = e => { try { render(JSON.parse(e.data).snapshot); } catch (_) {} };
} catch (_) {}
</script>
</body>
</html>`

func (s *Server) handleBlockPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte(blockPageHTML))
}
