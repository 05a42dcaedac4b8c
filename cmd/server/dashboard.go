package main

import (
	"net/http"
)

func dashboardHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(dashboardHTML))
}

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Tufn Gate</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; background: #0f1115; color: #e6e6e6; padding: 24px; }
        .container { max-width: 1100px; margin: 0 auto; }
        h1 { font-size: 1.8em; margin-bottom: 4px; }
        .sub { opacity: 0.6; margin-bottom: 24px; }
        .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(200px, 1fr)); gap: 16px; margin-bottom: 24px; }
        .card { background: #1a1d24; border-radius: 10px; padding: 18px; }
        .card .label { font-size: 0.8em; text-transform: uppercase; opacity: 0.6; }
        .card .value { font-size: 2em; font-weight: 600; margin-top: 6px; }
        .ok { color: #4ade80; } .bad { color: #f87171; }
        table { width: 100%; border-collapse: collapse; background: #1a1d24; border-radius: 10px; overflow: hidden; margin-bottom: 24px; }
        th, td { text-align: left; padding: 10px 14px; border-bottom: 1px solid #262a33; }
        th { font-size: 0.8em; text-transform: uppercase; opacity: 0.6; }
    </style>
</head>
<body>
<div class="container">
    <h1>Tufn Gate</h1>
    <div class="sub">Submission gate activity, refreshed every 2s</div>

    <div class="grid">
        <div class="card"><div class="label">Decisions</div><div class="value" id="total">0</div></div>
        <div class="card"><div class="label">Allowed</div><div class="value ok" id="allowed">0</div></div>
        <div class="card"><div class="label">Blocked</div><div class="value bad" id="blocked">0</div></div>
        <div class="card"><div class="label">Keys</div><div class="value" id="keys">0</div></div>
        <div class="card"><div class="label">Sweeps / keys swept</div><div class="value" id="sweeps">0</div></div>
    </div>

    <table>
        <thead><tr><th>Form / outcome</th><th>Count</th></tr></thead>
        <tbody id="submissions"><tr><td colspan="2">No submissions yet</td></tr></tbody>
    </table>

    <table>
        <thead><tr><th>Key</th><th>Total</th><th>Allowed</th><th>Blocked</th><th>Last seen</th></tr></thead>
        <tbody id="top"><tr><td colspan="5">No requests yet</td></tr></tbody>
    </table>
</div>
<script>
    function text(id, v) { document.getElementById(id).textContent = v; }
    function esc(s) { const d = document.createElement('div'); d.textContent = s; return d.innerHTML; }

    async function refresh() {
        try {
            const data = await (await fetch('/metrics/summary')).json();
            text('total', data.total_requests.toLocaleString());
            text('allowed', data.allowed_requests.toLocaleString());
            text('blocked', data.blocked_requests.toLocaleString());
            text('keys', data.unique_clients.toLocaleString());
            text('sweeps', data.sweeps + ' / ' + data.swept_keys);

            const subs = Object.entries(data.submissions || {}).sort();
            document.getElementById('submissions').innerHTML = subs.length
                ? subs.map(([k, v]) => '<tr><td>' + esc(k) + '</td><td>' + v + '</td></tr>').join('')
                : '<tr><td colspan="2">No submissions yet</td></tr>';

            const top = data.top_clients || [];
            document.getElementById('top').innerHTML = top.length
                ? top.map(c => '<tr><td>' + esc(c.key) + '</td><td>' + c.total_requests + '</td><td>' +
                    c.allowed_requests + '</td><td>' + c.blocked_requests + '</td><td>' +
                    new Date(c.last_request_at).toLocaleTimeString() + '</td></tr>').join('')
                : '<tr><td colspan="5">No requests yet</td></tr>';
        } catch (err) {
            console.error('Failed to fetch metrics:', err);
        }
    }

    refresh();
    setInterval(refresh, 2000);
</script>
</body>
</html>`
