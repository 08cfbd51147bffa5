package api

import (
	"net/http"
)

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(widgetPageHTML))
}

const widgetPageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>QR Code Generator</title>
<style>
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
    background: #020617;
    color: #e2e8f0;
    min-height: 100vh;
    padding: 32px 16px;
  }
  .card {
    background: #0f172a;
    border: 1px solid #1e293b;
    border-radius: 16px;
    max-width: 896px;
    margin: 0 auto;
  }
  .card h1 {
    font-size: 28px; font-weight: 700; text-align: center; color: #fff;
    padding: 24px; border-bottom: 1px solid #1e293b;
  }
  .body { padding: 24px; }
  .tabs { display: grid; grid-template-columns: 1fr 1fr; gap: 8px; margin-bottom: 32px; }
  .tabs button {
    background: #1e293b; color: #f1f5f9; border: 0; border-radius: 12px;
    padding: 10px; cursor: pointer; font-size: 14px;
  }
  .tabs button.active { background: #7c3aed; }
  .grid { display: grid; grid-template-columns: 1fr 1fr; gap: 32px; }
  @media (max-width: 720px) { .grid { grid-template-columns: 1fr; } }
  .field { margin-bottom: 24px; }
  label { display: block; font-size: 14px; color: #cbd5e1; margin-bottom: 12px; }
  input[type=text], select {
    width: 100%; background: #1e293b; border: 1px solid #334155; color: #fff;
    border-radius: 8px; padding: 10px;
  }
  input[type=color] { width: 100%; height: 48px; background: #1e293b; border: 1px solid #334155; border-radius: 8px; }
  input[type=range] { width: 100%; }
  .primary {
    width: 100%; background: #7c3aed; color: #fff; border: 0; border-radius: 8px;
    padding: 12px; font-size: 14px; cursor: pointer;
  }
  .primary:disabled { opacity: 0.5; cursor: not-allowed; }
  #preview {
    aspect-ratio: 1 / 1; width: 100%; background: #1e293b; border-radius: 8px;
    border: 2px dashed #334155; display: flex; align-items: center; justify-content: center;
    padding: 16px; margin-bottom: 24px; text-align: center; color: #64748b;
  }
  #preview img { max-width: 100%; max-height: 100%; }
  #preview .title { font-size: 18px; }
  #preview .hint { font-size: 13px; }
  #notice { color: #f87171; font-size: 13px; min-height: 18px; margin-bottom: 12px; }
  .hidden { display: none; }
  .aside { text-align: center; color: #94a3b8; align-self: center; }
  .aside p:first-child { color: #fff; font-size: 18px; margin-bottom: 12px; }
</style>
</head>
<body>
<div class="card">
  <h1>QR Code Generator</h1>
  <div class="body">
    <div class="tabs">
      <button id="tab-generate" class="active">Generate</button>
      <button id="tab-customize">Customize</button>
    </div>

    <div id="pane-generate" class="grid">
      <div>
        <div class="field">
          <label for="content">Content</label>
          <input id="content" type="text" placeholder="Enter text or URL">
        </div>
        <button id="generate" class="primary" disabled>Generate QR Code</button>
      </div>
      <div>
        <div id="preview"></div>
        <div id="notice"></div>
        <button id="download" class="primary hidden">Download QR Code</button>
      </div>
    </div>

    <div id="pane-customize" class="grid hidden">
      <div>
        <div class="field">
          <label for="size" id="size-label">Size</label>
          <input id="size" type="range" min="100" max="500" step="50">
        </div>
        <div class="field">
          <label for="format">Format</label>
          <select id="format">
            <option value="png">PNG</option>
            <option value="svg">SVG</option>
            <option value="jpg">JPG</option>
          </select>
        </div>
        <div class="field">
          <label for="color">QR Code Color</label>
          <input id="color" type="color">
        </div>
        <div class="field">
          <label for="bgcolor">Background Color</label>
          <input id="bgcolor" type="color">
        </div>
      </div>
      <div class="aside">
        <p>Customize Your QR Code</p>
        <p>Adjust size, colors, and format to create the perfect QR code for your needs.</p>
      </div>
    </div>
  </div>
</div>
<script>
(function() {
  var sessionURL = null;
  var $ = function(id) { return document.getElementById(id); };

  function clearChildren(el) {
    while (el.firstChild) el.removeChild(el.firstChild);
  }

  function api(method, path, body) {
    var opts = { method: method, headers: {} };
    if (body !== undefined) {
      opts.headers['Content-Type'] = 'application/json';
      opts.body = JSON.stringify(body);
    }
    return fetch(sessionURL + path, opts);
  }

  // Work against the session runs one request at a time, in order.
  var pending = Promise.resolve();
  function queue(fn) {
    pending = pending.then(fn).catch(function(err) {
      $('notice').textContent = 'Request failed: ' + err;
    });
    return pending;
  }

  // The content field belongs to the user once mounted; server echoes of
  // it may be stale.
  function applyState(data, mounting) {
    var st = data.state;
    if (mounting) $('content').value = st.content;
    $('size').value = st.size;
    $('size-label').textContent = 'Size: ' + st.size + 'x' + st.size + 'px';
    $('format').value = st.format;
    $('color').value = '#' + st.color;
    $('bgcolor').value = '#' + st.bgcolor;
    $('generate').disabled = !data.can_generate;
  }

  function renderPreview() {
    return api('GET', '/preview').then(function(r) { return r.json(); }).then(function(p) {
      var box = $('preview');
      clearChildren(box);
      $('notice').textContent = p.error || '';
      if (p.mode === 'image') {
        var img = document.createElement('img');
        img.setAttribute('alt', p.alt);
        img.onerror = function() { $('notice').textContent = 'The QR code image could not be loaded.'; };
        img.setAttribute('src', p.image_url);
        box.appendChild(img);
      } else {
        var t = document.createElement('p');
        t.className = 'title';
        t.textContent = p.title;
        var h = document.createElement('p');
        h.className = 'hint';
        h.textContent = p.hint;
        box.appendChild(t);
        box.appendChild(h);
      }
      $('download').classList.toggle('hidden', !p.can_download);
    });
  }

  function update(fields) {
    return queue(function() {
      return api('PATCH', '', fields).then(function(r) { return r.json(); }).then(function(data) {
        if (data.error) { $('notice').textContent = data.error; return; }
        applyState(data, false);
      });
    });
  }

  function generate() {
    $('generate').disabled = true;
    queue(function() {
      return api('POST', '/generate').then(function(r) { return r.json(); }).then(function(data) {
        applyState(data, false);
        return renderPreview();
      });
    });
  }

  function download() {
    api('GET', '/download').then(function(r) {
      if (r.status === 204) return;
      if (!r.ok) {
        return r.json().then(function(e) { $('notice').textContent = e.error; });
      }
      var name = 'qrcode.' + $('format').value;
      var cd = r.headers.get('Content-Disposition') || '';
      var m = /filename="?([^";]+)"?/.exec(cd);
      if (m) name = m[1];
      return r.blob().then(function(blob) {
        var objectURL = URL.createObjectURL(blob);
        try {
          var link = document.createElement('a');
          link.href = objectURL;
          link.download = name;
          document.body.appendChild(link);
          link.click();
          document.body.removeChild(link);
        } finally {
          URL.revokeObjectURL(objectURL);
        }
        $('notice').textContent = '';
      });
    }).catch(function(err) {
      $('notice').textContent = 'Download failed: ' + err;
    });
  }

  function showTab(name) {
    $('tab-generate').classList.toggle('active', name === 'generate');
    $('tab-customize').classList.toggle('active', name === 'customize');
    $('pane-generate').classList.toggle('hidden', name !== 'generate');
    $('pane-customize').classList.toggle('hidden', name !== 'customize');
  }

  $('tab-generate').onclick = function() { showTab('generate'); };
  $('tab-customize').onclick = function() { showTab('customize'); };
  $('content').oninput = function(e) {
    $('generate').disabled = e.target.value === '';
    update({ content: e.target.value });
  };
  $('size').oninput = function(e) { update({ size: parseInt(e.target.value, 10) }); };
  $('format').onchange = function(e) { update({ format: e.target.value }); };
  $('color').oninput = function(e) { update({ color: e.target.value.substring(1) }); };
  $('bgcolor').oninput = function(e) { update({ bgcolor: e.target.value.substring(1) }); };
  $('generate').onclick = generate;
  $('download').onclick = download;

  // Keeps an open tab's session clear of idle expiry.
  setInterval(function() {
    if (sessionURL) api('GET', '');
  }, 60000);

  window.addEventListener('pagehide', function() {
    if (sessionURL) fetch(sessionURL, { method: 'DELETE', keepalive: true });
  });

  fetch('/sessions', { method: 'POST' }).then(function(r) { return r.json(); }).then(function(data) {
    sessionURL = '/sessions/' + data.id;
    applyState(data, true);
    return renderPreview();
  });
})();
</script>
</body>
</html>`
