package publish

const sharedCSS = `
body{font-family:Georgia,"Times New Roman",serif;margin:0;background:#fafafa;color:#222;line-height:1.6}
.shared-document{max-width:820px;margin:0 auto;padding:2rem 1.25rem}
.cover-page{text-align:center;margin-bottom:1.5rem}
.book-cover-image{max-width:100%;max-height:80vh;border-radius:6px;box-shadow:0 4px 18px rgba(0,0,0,.18)}
.shared-title{text-align:center}
.toc{background:#fff;border:1px solid #e5e5e5;border-radius:6px;padding:1rem 1.5rem;margin:2rem 0}
.toc a{color:#2b59c3;text-decoration:none}
.chapter{background:#fff;border-radius:6px;padding:1.5rem;margin:2rem 0;box-shadow:0 1px 4px rgba(0,0,0,.06)}
.chapter img{max-width:100%;height:auto}
.quiz-container{border-top:2px solid #eee;margin-top:2rem;padding-top:1rem}
.quiz-question{margin:1rem 0}
.quiz-options{list-style:none;padding:0}
.quiz-option{display:flex;align-items:center;gap:.5rem;cursor:pointer;padding:.35rem .5rem;border-radius:4px}
.quiz-option:hover{background:#f2f5fb}
.quiz-circle{width:14px;height:14px;border:2px solid #888;border-radius:50%;flex:none}
.quiz-option.selected .quiz-circle{background:#2b59c3;border-color:#2b59c3}
.quiz-option.correct{background:#e6f6ea}
.quiz-option.incorrect{background:#fdeaea}
.fill-blank-input{border:none;border-bottom:2px solid #888;min-width:6rem;font:inherit;background:transparent}
.fill-blank-input.correct{border-color:#2e9d4f}
.fill-blank-input.incorrect{border-color:#d33}
.flip-card-grid{display:grid;grid-template-columns:repeat(auto-fill,minmax(200px,1fr));gap:1rem;margin:1rem 0}
.flip-card{perspective:800px;height:140px;cursor:pointer}
.flip-card-inner{position:relative;width:100%;height:100%;transition:transform .5s;transform-style:preserve-3d}
.flip-card.flipped .flip-card-inner{transform:rotateY(180deg)}
.flip-card-front,.flip-card-back{position:absolute;inset:0;display:flex;align-items:center;justify-content:center;padding:.75rem;border-radius:6px;backface-visibility:hidden;border:1px solid #ddd;background:#fff;text-align:center}
.flip-card-back{transform:rotateY(180deg);background:#f2f5fb}
.check-answers-btn{margin-top:1rem;padding:.5rem 1rem;border:none;border-radius:4px;background:#2b59c3;color:#fff;cursor:pointer}
.quiz-score{font-weight:bold}
`

// interactivityScript grades quizzes in the browser. Multiple choice answers
// come from data-answer (option index), fill-in answers from the input's
// data-answer (case-insensitive).
const interactivityScript = `
(function(){
  function closest(el, cls){
    while(el && el.classList && !el.classList.contains(cls)){ el = el.parentElement; }
    return el && el.classList && el.classList.contains(cls) ? el : null;
  }
  document.addEventListener('click', function(ev){
    var opt = closest(ev.target, 'quiz-option');
    if(opt){
      var q = closest(opt, 'quiz-question');
      if(q){
        q.querySelectorAll('.quiz-option').forEach(function(o){ o.classList.remove('selected'); });
      }
      opt.classList.add('selected');
      return;
    }
    var card = closest(ev.target, 'flip-card');
    if(card){
      card.classList.toggle('flipped');
      return;
    }
    var btn = closest(ev.target, 'check-answers-btn');
    if(btn){
      var quiz = closest(btn, 'quiz-container');
      if(!quiz){ return; }
      var total = 0, correct = 0;
      quiz.querySelectorAll('.quiz-question').forEach(function(q){
        var type = q.getAttribute('data-type');
        if(type === 'multiple_choice'){
          total++;
          var answer = q.getAttribute('data-answer');
          var chosen = q.querySelector('.quiz-option.selected');
          q.querySelectorAll('.quiz-option').forEach(function(o){ o.classList.remove('correct','incorrect'); });
          if(chosen && chosen.getAttribute('data-index') === answer){
            correct++;
            chosen.classList.add('correct');
          } else if(chosen){
            chosen.classList.add('incorrect');
          }
        } else if(type === 'fill_blank'){
          q.querySelectorAll('.fill-blank-input').forEach(function(input){
            total++;
            var want = (input.getAttribute('data-answer') || '').trim().toLowerCase();
            var got = (input.value || '').trim().toLowerCase();
            input.classList.remove('correct','incorrect');
            if(got !== '' && got === want){
              correct++;
              input.classList.add('correct');
            } else {
              input.classList.add('incorrect');
            }
          });
        }
        q.querySelectorAll('.quiz-explanation').forEach(function(e){ e.hidden = false; });
      });
      var score = quiz.querySelector('.quiz-score');
      if(score){ score.textContent = 'Score: ' + correct + ' / ' + total; }
    }
  });
})();
`
