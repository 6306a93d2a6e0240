package server

import "html/template"

// pageTmpl is the server-rendered fallback page. The live values come from /ws.
var pageTmpl = template.Must(template.New("page").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>BaseMiner</title>
</head>
<body>
<header>
{{if .Session.Connected}}<span id="account" title="{{.Session.Address}}">{{.Session.Short}}</span>{{else}}<span id="account">Not connected</span>{{end}}
</header>
<main>
<section>
<h2>Total value locked</h2>
<p id="tvl">{{with .TVL.Total}}{{.}} ETH{{else}}Loading...{{end}}</p>
<p>Aave {{with .TVL.Principal}}{{.}}{{else}}-{{end}} ETH, reserve {{with .TVL.Reserve}}{{.}}{{else}}-{{end}} ETH, yield {{with .TVL.Yield}}{{.}}{{else}}-{{end}} ETH</p>
</section>
<section>
<h2>Your mine</h2>
<p>Wallet: <span id="wallet">{{with .WalletBalance}}{{.}} ETH{{else}}Loading...{{end}}</span></p>
<p>Miners: <span id="miners">{{with .Miners}}{{.}} GEMS{{else}}Loading...{{end}}</span></p>
<p>Rewards: <span id="rewards">{{with .RewardsShort}}{{.}} ETH{{else}}Loading...{{end}}</span></p>
<p>Refine: <span id="cooldown">{{.Cooldown.Text}}</span>{{if .Sponsored.Supported}} (gas sponsored){{end}}</p>
</section>
{{with .Referral}}<p id="referral">Referred by {{.}}</p>{{end}}
</main>
<script>
(function () {
  var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
  ws.onmessage = function (ev) {
    var v = JSON.parse(ev.data).payload;
    document.getElementById("cooldown").textContent = v.cooldown.text;
    document.getElementById("rewards").textContent = v.rewardsShort ? v.rewardsShort + " ETH" : "Loading...";
    document.getElementById("miners").textContent = v.miners ? v.miners + " GEMS" : "Loading...";
    document.getElementById("wallet").textContent = v.walletBalance ? v.walletBalance + " ETH" : "Loading...";
  };
})();
</script>
</body>
</html>
`))
